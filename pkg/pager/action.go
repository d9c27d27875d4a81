package pager

import (
	"fmt"

	"github.com/Sternrassler/feedpager/pkg/paging"
)

// ActionKind enumerates pager actions.
type ActionKind int

const (
	// ActionProcessQueue drains the queue of a direction while prefetching is due.
	ActionProcessQueue ActionKind = iota

	// ActionSkipQueue loads a key directly, bypassing the queue.
	ActionSkipQueue

	// ActionEnqueue queues a key, optionally jumping ahead.
	ActionEnqueue

	// ActionInvalidate drops all state and reloads from the initial key.
	ActionInvalidate
)

// String returns the action name.
func (k ActionKind) String() string {
	switch k {
	case ActionProcessQueue:
		return "process_queue"
	case ActionSkipQueue:
		return "skip_queue"
	case ActionEnqueue:
		return "enqueue"
	case ActionInvalidate:
		return "invalidate"
	default:
		return fmt.Sprintf("action(%d)", int(k))
	}
}

// Action is a request to the pager.
type Action[K comparable] struct {
	Kind      ActionKind
	Key       K
	Direction paging.Direction
	Strategy  paging.LoadStrategy
	Jump      bool
}

// ProcessQueue asks the pager to work through the queue of d.
func ProcessQueue[K comparable](d paging.Direction) Action[K] {
	return Action[K]{Kind: ActionProcessQueue, Direction: d}
}

// SkipQueue loads key right away without auto-enqueueing its neighbours.
func SkipQueue[K comparable](key K, d paging.Direction, s paging.LoadStrategy) Action[K] {
	return Action[K]{Kind: ActionSkipQueue, Key: key, Direction: d, Strategy: s}
}

// Enqueue queues key in direction d. With jump set, queued keys at or
// before key are dropped and key goes first.
func Enqueue[K comparable](key K, d paging.Direction, s paging.LoadStrategy, jump bool) Action[K] {
	return Action[K]{Kind: ActionEnqueue, Key: key, Direction: d, Strategy: s, Jump: jump}
}

// Invalidate resets the pager and reloads from the initial key.
func Invalidate[K comparable]() Action[K] {
	return Action[K]{Kind: ActionInvalidate}
}
