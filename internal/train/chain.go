package train

import (
	"reflect"
	"slices"
)

// Name returns the registry key of a callback: the name of its concrete
// type, without package or pointer.
func Name(cb Callback) string {
	t := reflect.TypeOf(cb)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}

type entry struct {
	name string
	cb   Callback
	seq  int
}

// Chain is an ordered registry of callbacks keyed by concrete type.
//
// Entries are sorted by Order, ties broken by first insertion. Adding a
// callback whose type is already registered replaces the existing one;
// the replacement keeps the original insertion rank.
type Chain struct {
	entries []entry
	nextSeq int
}

// NewChain returns a chain holding cbs.
func NewChain(cbs ...Callback) *Chain {
	c := &Chain{}
	c.Add(cbs...)
	return c
}

// Add registers callbacks, replacing any of the same type, and re-sorts.
func (c *Chain) Add(cbs ...Callback) {
	for _, cb := range cbs {
		name := Name(cb)
		if i := c.index(name); i >= 0 {
			c.entries[i].cb = cb
			continue
		}
		c.entries = append(c.entries, entry{name: name, cb: cb, seq: c.nextSeq})
		c.nextSeq++
	}
	c.sort()
}

// Get returns the callback registered under name.
func (c *Chain) Get(name string) (Callback, bool) {
	if i := c.index(name); i >= 0 {
		return c.entries[i].cb, true
	}
	return nil, false
}

// Remove unregisters name. It is safe to call during a dispatch; the
// current dispatch still runs over the callbacks it started with.
func (c *Chain) Remove(name string) bool {
	i := c.index(name)
	if i < 0 {
		return false
	}
	c.entries = slices.Delete(c.entries, i, i+1)
	return true
}

// Names returns the registered names in dispatch order.
func (c *Chain) Names() []string {
	names := make([]string, len(c.entries))
	for i, e := range c.entries {
		names[i] = e.name
	}
	return names
}

// Len returns the number of callbacks.
func (c *Chain) Len() int {
	return len(c.entries)
}

func (c *Chain) index(name string) int {
	return slices.IndexFunc(c.entries, func(e entry) bool { return e.name == name })
}

func (c *Chain) sort() {
	slices.SortStableFunc(c.entries, func(a, b entry) int {
		if d := a.cb.Order() - b.cb.Order(); d != 0 {
			return d
		}
		return a.seq - b.seq
	})
}

// snapshot returns the current dispatch order.
func (c *Chain) snapshot() []entry {
	return slices.Clone(c.entries)
}
