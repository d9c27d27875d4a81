package persistence

import (
	"fmt"
	"strings"
)

// Keys builds deterministic storage keys for a namespace.
//
// Format:
//
//	feedpager:<namespace>:item:<id>
//	feedpager:<namespace>:page:<key>
//	feedpager:<namespace>:events:<id>
type Keys struct {
	Namespace string
}

// DefaultNamespace is used when Keys.Namespace is empty.
const DefaultNamespace = "default"

func (k Keys) prefix() string {
	ns := strings.Trim(k.Namespace, ":")
	if ns == "" {
		ns = DefaultNamespace
	}
	return "feedpager:" + ns + ":"
}

// Item returns the key holding the item with the given id.
func (k Keys) Item(id any) string {
	return fmt.Sprintf("%sitem:%s", k.prefix(), keyString(id))
}

// ItemPrefix returns the prefix shared by all item keys.
func (k Keys) ItemPrefix() string {
	return k.prefix() + "item:"
}

// Page returns the key holding the page record for a page key.
func (k Keys) Page(key any) string {
	return fmt.Sprintf("%spage:%s", k.prefix(), keyString(key))
}

// Events returns the pub/sub channel for saves of an item.
func (k Keys) Events(id any) string {
	return fmt.Sprintf("%sevents:%s", k.prefix(), keyString(id))
}
