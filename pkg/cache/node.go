package cache

import "github.com/Sternrassler/feedpager/pkg/paging"

// node is one page in the arena. prev/next link retrieval order, prevKey and
// nextKey are the adjacent keys reported by the remote source.
type node[Id comparable, K comparable] struct {
	key         K
	entries     []paging.Entry[Id]
	placeholder bool
	prevKey     *K
	nextKey     *K
	prev        *K
	next        *K
}

// Node describes a cached page.
type Node[K comparable] struct {
	Key         K
	Placeholder bool
	InFlight    bool
	Size        int
	Prev        *K
	Next        *K
}

// Nodes returns the cached pages in retrieval order.
func (c *Cache[Id, K, V]) Nodes() []Node[K] {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Node[K]
	c.eachNodeLocked(func(n *node[Id, K]) {
		_, inFlight := c.inFlight[n.key]
		out = append(out, Node[K]{
			Key:         n.key,
			Placeholder: n.placeholder,
			InFlight:    inFlight,
			Size:        len(n.entries),
			Prev:        n.prev,
			Next:        n.next,
		})
	})
	return out
}

func (c *Cache[Id, K, V]) linkLocked(n *node[Id, K], d paging.Direction) {
	key := paging.Ptr(n.key)
	if d == paging.Prepend {
		n.prev = nil
		n.next = c.head
		if c.head != nil {
			c.nodes[*c.head].prev = key
		} else {
			c.tail = key
		}
		c.head = key
		return
	}
	n.next = nil
	n.prev = c.tail
	if c.tail != nil {
		c.nodes[*c.tail].next = key
	} else {
		c.head = key
	}
	c.tail = key
}

func (c *Cache[Id, K, V]) dropNodeLocked(n *node[Id, K]) {
	if n.prev != nil {
		c.nodes[*n.prev].next = n.next
	} else {
		c.head = n.next
	}
	if n.next != nil {
		c.nodes[*n.next].prev = n.prev
	} else {
		c.tail = n.prev
	}
	delete(c.nodes, n.key)
}

func (c *Cache[Id, K, V]) eachNodeLocked(fn func(*node[Id, K])) {
	for k := c.head; k != nil; {
		n := c.nodes[*k]
		fn(n)
		k = n.next
	}
}
