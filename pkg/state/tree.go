package state

import (
	"encoding/json"
	"slices"
	"sort"
	"strings"
	"sync"
)

// Op is the kind of mutation carried by an Event.
type Op string

const (
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Path addresses a node as an ordered sequence of keys from some mount point.
type Path []string

// ParsePath splits a slash separated path, ignoring empty segments.
// "a/b/c", "/a/b/c/" and "a//b/c" all yield [a b c].
func ParsePath(s string) Path {
	parts := strings.Split(s, "/")
	out := make(Path, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (p Path) String() string { return strings.Join(p, "/") }

// Event describes one committed mutation.
// Path is relative to the node of the subscriber receiving it.
type Event struct {
	Path    Path `json:"path"`
	Content any  `json:"content"`
	Op      Op   `json:"operation"`
}

// Subscriber receives events synchronously on the mutating goroutine.
type Subscriber func(Event)

type subscription struct {
	id uint64
	fn Subscriber
}

// Tree is a node of the hierarchical, observable state store.
// A node is either a leaf holding a value or a mapping of keys to child nodes.
// A node knows its mount parent, so a mutation on any node is reported to the
// subscribers of every ancestor.
//
// Each node guards its own fields; subscriber callbacks always run with no
// node lock held, so a callback may read or write the tree.
type Tree struct {
	mu       sync.RWMutex
	leaf     any
	children map[string]*Tree
	parent   *Tree
	key      string
	subs     []subscription
	nextSub  uint64
	// grafted is set while the node is mounted under a parent it was not
	// created by.
	grafted bool
}

// New returns an empty mapping node.
func New() *Tree {
	return &Tree{children: make(map[string]*Tree)}
}

// NewFrom returns a mapping node populated from data.
func NewFrom(data map[string]any) *Tree {
	t := New()
	t.assign(data)
	return t
}

// Get returns the value at path.
// It returns nil when the final key is absent and an empty mapping when an
// intermediate mapping is missing. Mapping nodes are returned as snapshots.
func (t *Tree) Get(path Path) any {
	node := t
	for i, k := range path {
		node.mu.RLock()
		isMap := node.children != nil
		child, ok := node.children[k]
		node.mu.RUnlock()
		if !isMap || !ok {
			if i < len(path)-1 {
				return map[string]any{}
			}
			return nil
		}
		node = child
	}
	return node.Value()
}

// Lookup returns the value at path and whether the path exists.
func (t *Tree) Lookup(path Path) (any, bool) {
	node := t.Node(path)
	if node == nil {
		return nil, false
	}
	return node.Value(), true
}

// Node returns the live node at path, or nil if it does not exist.
func (t *Tree) Node(path Path) *Tree {
	node := t
	for _, k := range path {
		node.mu.RLock()
		child, ok := node.children[k]
		node.mu.RUnlock()
		if !ok {
			return nil
		}
		node = child
	}
	return node
}

// Value returns the content of this node: the leaf value, or a snapshot map
// of the whole subtree.
func (t *Tree) Value() any {
	t.mu.RLock()
	if t.children == nil {
		v := t.leaf
		t.mu.RUnlock()
		return v
	}
	children := make(map[string]*Tree, len(t.children))
	for k, c := range t.children {
		children[k] = c
	}
	t.mu.RUnlock()

	out := make(map[string]any, len(children))
	for k, c := range children {
		out[k] = c.Value()
	}
	return out
}

// IsMapping reports whether the node holds children rather than a leaf value.
func (t *Tree) IsMapping() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.children != nil
}

// Keys returns the sorted child keys of a mapping node.
func (t *Tree) Keys() []string {
	t.mu.RLock()
	keys := make([]string, 0, len(t.children))
	for k := range t.children {
		keys = append(keys, k)
	}
	t.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// Update sets the node reached by path to data, creating missing intermediate
// mappings. A leaf written over a mapping replaces the whole mapping.
//
// An empty path replaces the content of t itself. If data is a *Tree it is
// grafted: it keeps its own subscribers, and because its parent link now
// points at the mount point, later mutations made directly on it are also
// reported to every ancestor above the graft.
func (t *Tree) Update(path Path, data any) {
	if len(path) == 0 {
		if sub, ok := data.(*Tree); ok {
			data = sub.Value()
		}
		t.assign(data)
		t.notify(Event{Path: Path{}, Content: t.Value(), Op: OpUpdate})
		return
	}

	node := t
	for _, k := range path[:len(path)-1] {
		node = node.At(k)
	}
	target := node.put(path[len(path)-1], data)
	target.notify(Event{Path: Path{}, Content: target.Value(), Op: OpUpdate})
}

// Delete removes the node at path. Deleting a missing path is a no-op.
// An empty path clears t to an empty mapping.
func (t *Tree) Delete(path Path) {
	if len(path) == 0 {
		t.assign(map[string]any{})
		t.notify(Event{Path: Path{}, Op: OpDelete})
		return
	}
	parent := t.Node(path[:len(path)-1])
	if parent == nil {
		return
	}
	key := path[len(path)-1]

	parent.mu.Lock()
	child, ok := parent.children[key]
	if ok {
		delete(parent.children, key)
	}
	parent.mu.Unlock()
	if !ok {
		return
	}
	child.detachFrom(parent)
	parent.notify(Event{Path: Path{key}, Op: OpDelete})
}

// At returns the live child node for key, creating an empty mapping if it is
// missing. If t is a leaf it is turned into a mapping first.
func (t *Tree) At(key string) *Tree {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.children == nil {
		t.children = make(map[string]*Tree)
		t.leaf = nil
	}
	child, ok := t.children[key]
	if !ok {
		child = &Tree{children: make(map[string]*Tree), parent: t, key: key}
		t.children[key] = child
	}
	return child
}

// Set is shorthand for Update(Path{key}, data).
func (t *Tree) Set(key string, data any) {
	t.Update(Path{key}, data)
}

// Subscribe registers fn for every mutation at or below t.
// The returned function removes the subscription.
func (t *Tree) Subscribe(fn Subscriber) func() {
	t.mu.Lock()
	t.nextSub++
	id := t.nextSub
	t.subs = append(t.subs, subscription{id: id, fn: fn})
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		t.subs = slices.DeleteFunc(t.subs, func(s subscription) bool { return s.id == id })
	}
}

// MountPath returns the path from the topmost ancestor down to t.
func (t *Tree) MountPath() Path {
	var path Path
	node := t
	for {
		node.mu.RLock()
		parent, key := node.parent, node.key
		node.mu.RUnlock()
		if parent == nil {
			break
		}
		path = append(Path{key}, path...)
		node = parent
	}
	return path
}

// MarshalJSON encodes the snapshot of the subtree.
func (t *Tree) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Value())
}

func (t *Tree) put(key string, data any) *Tree {
	if sub, ok := data.(*Tree); ok {
		t.graft(key, sub)
		return sub
	}

	t.mu.Lock()
	if t.children == nil {
		t.children = make(map[string]*Tree)
		t.leaf = nil
	}
	child, ok := t.children[key]
	if ok && child.isGrafted() {
		// Replace the mounted tree instead of rewriting the caller's node.
		defer child.detachFrom(t)
		ok = false
	}
	if !ok {
		child = &Tree{parent: t, key: key}
		t.children[key] = child
	}
	t.mu.Unlock()

	child.assign(data)
	return child
}

func (t *Tree) isGrafted() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.grafted
}

func (t *Tree) graft(key string, sub *Tree) {
	for n := t; n != nil; n = n.parentNode() {
		if n == sub {
			panic("state: graft would create a cycle")
		}
	}

	sub.mu.Lock()
	oldParent, oldKey := sub.parent, sub.key
	sub.parent, sub.key = t, key
	sub.grafted = true
	sub.mu.Unlock()

	if oldParent != nil && (oldParent != t || oldKey != key) {
		oldParent.mu.Lock()
		if oldParent.children[oldKey] == sub {
			delete(oldParent.children, oldKey)
		}
		oldParent.mu.Unlock()
	}

	t.mu.Lock()
	if t.children == nil {
		t.children = make(map[string]*Tree)
		t.leaf = nil
	}
	replaced := t.children[key]
	t.children[key] = sub
	t.mu.Unlock()

	if replaced != nil && replaced != sub {
		replaced.detachFrom(t)
	}
}

// assign replaces the content of t in place, keeping t's subscribers and mount.
func (t *Tree) assign(data any) {
	var children map[string]*Tree
	if m, ok := data.(map[string]any); ok {
		children = make(map[string]*Tree, len(m))
		for k, item := range m {
			if sub, ok := item.(*Tree); ok {
				sub.mu.Lock()
				sub.parent, sub.key = t, k
				sub.grafted = true
				sub.mu.Unlock()
				children[k] = sub
				continue
			}
			c := &Tree{parent: t, key: k}
			c.assign(item)
			children[k] = c
		}
	}

	t.mu.Lock()
	old := t.children
	if children != nil {
		t.children = children
		t.leaf = nil
	} else {
		t.children = nil
		t.leaf = data
	}
	t.mu.Unlock()

	for k, c := range old {
		if children == nil || children[k] != c {
			c.detachFrom(t)
		}
	}
}

func (t *Tree) detachFrom(parent *Tree) {
	t.mu.Lock()
	if t.parent == parent {
		t.parent = nil
		t.key = ""
		t.grafted = false
	}
	t.mu.Unlock()
}

func (t *Tree) parentNode() *Tree {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.parent
}

// notify delivers ev to t and then to every ancestor, prefixing the path with
// the mount key at each step up.
func (t *Tree) notify(ev Event) {
	rel := ev.Path
	for node := t; node != nil; {
		node.mu.RLock()
		subs := slices.Clone(node.subs)
		parent, key := node.parent, node.key
		node.mu.RUnlock()

		for _, s := range subs {
			s.fn(Event{Path: slices.Clone(rel), Content: ev.Content, Op: ev.Op})
		}

		if parent != nil {
			rel = append(Path{key}, rel...)
		}
		node = parent
	}
}
