package state_test

import (
	"sync"
	"testing"

	"github.com/benchrig/benchrig/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTree_UpdateThenGet(t *testing.T) {
	tests := []struct {
		name  string
		path  state.Path
		value any
	}{
		{"single key", state.Path{"a"}, 1},
		{"deep path", state.Path{"a", "b", "c"}, "x"},
		{"float", state.Path{"rf", "power"}, 17.25},
		{"mapping", state.Path{"cfg"}, map[string]any{"k": "v", "n": map[string]any{"m": true}}},
		{"nil leaf", state.Path{"gone"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := state.New()
			tree.Update(tt.path, tt.value)
			assert.Equal(t, tt.value, tree.Get(tt.path))
		})
	}
}

func TestTree_GetMissing(t *testing.T) {
	tree := state.New()
	tree.Update(state.Path{"a", "b"}, 1)

	assert.Nil(t, tree.Get(state.Path{"a", "zz"}), "missing final key")
	assert.Equal(t, map[string]any{}, tree.Get(state.Path{"x", "y", "z"}), "missing intermediate")
	assert.Nil(t, tree.Get(state.Path{"a", "b", "c"}), "final key below a leaf")
	assert.Equal(t, map[string]any{}, tree.Get(state.Path{"a", "b", "c", "d"}), "intermediate below a leaf")

	_, ok := tree.Lookup(state.Path{"a", "zz"})
	assert.False(t, ok)
	v, ok := tree.Lookup(state.Path{"a", "b"})
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestTree_EmptyPathReplacesContent(t *testing.T) {
	tree := state.New()
	tree.Update(state.Path{"old"}, 1)
	tree.Update(nil, map[string]any{"new": 2})

	assert.Equal(t, map[string]any{"new": 2}, tree.Get(nil))
}

func TestTree_LeafOverMappingIsLossy(t *testing.T) {
	tree := state.New()
	tree.Update(state.Path{"a", "b"}, 1)
	tree.Update(state.Path{"a"}, "flat")

	assert.Equal(t, "flat", tree.Get(state.Path{"a"}))
	assert.Nil(t, tree.Get(state.Path{"a", "b"}))
}

func TestTree_SubscriberPathIsRebased(t *testing.T) {
	root := state.New()
	sub := root.At("rf").At("tx0")

	var rootEvents, subEvents []state.Event
	root.Subscribe(func(ev state.Event) { rootEvents = append(rootEvents, ev) })
	sub.Subscribe(func(ev state.Event) { subEvents = append(subEvents, ev) })

	root.Update(state.Path{"rf", "tx0", "power", "dbm"}, 20)

	require.Len(t, subEvents, 1)
	assert.Equal(t, state.Path{"power", "dbm"}, subEvents[0].Path)
	assert.Equal(t, 20, subEvents[0].Content)
	assert.Equal(t, state.OpUpdate, subEvents[0].Op)

	require.Len(t, rootEvents, 1)
	assert.Equal(t, state.Path{"rf", "tx0", "power", "dbm"}, rootEvents[0].Path)
}

func TestTree_SiblingNotNotified(t *testing.T) {
	root := state.New()
	calls := 0
	root.At("a").Subscribe(func(state.Event) { calls++ })

	root.Update(state.Path{"b", "c"}, 1)
	assert.Zero(t, calls)
}

func TestTree_GraftPropagatesDirectMutations(t *testing.T) {
	outer := state.New()
	inner := state.New()

	var outerEvents, innerEvents []state.Event
	outer.Subscribe(func(ev state.Event) { outerEvents = append(outerEvents, ev) })
	inner.Subscribe(func(ev state.Event) { innerEvents = append(innerEvents, ev) })

	outer.Update(state.Path{"outside"}, inner)
	outerEvents, innerEvents = nil, nil

	inner.Update(state.Path{"inside"}, "Hello2")

	assert.Equal(t, "Hello2", outer.Get(state.Path{"outside", "inside"}))
	require.Len(t, outerEvents, 1)
	assert.Equal(t, state.Path{"outside", "inside"}, outerEvents[0].Path)
	assert.Equal(t, "Hello2", outerEvents[0].Content)
	require.Len(t, innerEvents, 1, "grafted node keeps its own subscribers")
	assert.Equal(t, state.Path{"inside"}, innerEvents[0].Path)
	assert.Equal(t, state.Path{"outside"}, inner.MountPath())
}

func TestTree_OverwriteGraftDetaches(t *testing.T) {
	outer := state.New()
	inner := state.New()
	inner.Set("inside", "Hello")
	outer.Update(state.Path{"outside"}, inner)

	var outerEvents []state.Event
	outer.Subscribe(func(ev state.Event) { outerEvents = append(outerEvents, ev) })

	outer.Update(state.Path{"outside"}, "leaf")

	assert.Equal(t, "leaf", outer.Get(state.Path{"outside"}))
	assert.Equal(t, "Hello", inner.Get(state.Path{"inside"}), "grafted tree keeps its content")
	assert.Empty(t, inner.MountPath())

	outerEvents = nil
	inner.Set("inside", "again")
	assert.Empty(t, outerEvents, "detached tree no longer reports to the old parent")
	assert.Equal(t, "leaf", outer.Get(state.Path{"outside"}))
}

func TestTree_RegraftMovesNode(t *testing.T) {
	a, b := state.New(), state.New()
	child := state.New()
	a.Set("x", child)
	b.Set("y", child)

	aCalls := 0
	a.Subscribe(func(state.Event) { aCalls++ })
	child.Set("k", 1)

	assert.Zero(t, aCalls)
	assert.Nil(t, a.Get(state.Path{"x"}))
	assert.Equal(t, 1, b.Get(state.Path{"y", "k"}))
}

func TestTree_GraftCyclePanics(t *testing.T) {
	root := state.New()
	child := root.At("a")
	assert.Panics(t, func() { child.Set("loop", root) })
}

func TestTree_AtReturnsLiveReference(t *testing.T) {
	root := state.New()
	var events []state.Event
	root.Subscribe(func(ev state.Event) { events = append(events, ev) })

	node := root.At("dut")
	node.Set("serial", "SN-1")

	assert.Equal(t, "SN-1", root.Get(state.Path{"dut", "serial"}))
	require.Len(t, events, 1)
	assert.Equal(t, state.Path{"dut", "serial"}, events[0].Path)
}

func TestTree_ReplacedNodeKeepsSubscribers(t *testing.T) {
	root := state.New()
	node := root.At("cfg")
	calls := 0
	node.Subscribe(func(state.Event) { calls++ })

	root.Update(state.Path{"cfg"}, map[string]any{"a": 1})
	node.Set("b", 2)

	assert.Equal(t, 2, calls)
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, root.Get(state.Path{"cfg"}))
}

func TestTree_SubscribersSeeMutationOrder(t *testing.T) {
	root := state.New()
	var seen []any
	unsubscribe := root.Subscribe(func(ev state.Event) { seen = append(seen, ev.Content) })

	for i := 0; i < 5; i++ {
		root.Set("n", i)
	}
	unsubscribe()
	root.Set("n", 99)

	assert.Equal(t, []any{0, 1, 2, 3, 4}, seen)
}

func TestTree_CallbackMayWrite(t *testing.T) {
	root := state.New()
	root.At("in").Subscribe(func(ev state.Event) {
		root.Set("echo", ev.Content)
	})

	root.Update(state.Path{"in", "v"}, "ping")
	assert.Equal(t, "ping", root.Get(state.Path{"echo"}))
}

func TestTree_Delete(t *testing.T) {
	root := state.New()
	root.Update(state.Path{"a", "b"}, 1)

	var events []state.Event
	root.Subscribe(func(ev state.Event) { events = append(events, ev) })

	root.Delete(state.Path{"a", "b"})
	root.Delete(state.Path{"missing", "key"})

	_, ok := root.Lookup(state.Path{"a", "b"})
	assert.False(t, ok)
	require.Len(t, events, 1)
	assert.Equal(t, state.Event{Path: state.Path{"a", "b"}, Op: state.OpDelete}, events[0])
}

func TestTree_KeysAndIsMapping(t *testing.T) {
	tree := state.NewFrom(map[string]any{"rf": map[string]any{"tx1": 1, "tx0": 0}, "serial": "SN-1"})

	assert.True(t, tree.IsMapping())
	assert.Equal(t, []string{"rf", "serial"}, tree.Keys())
	assert.Equal(t, []string{"tx0", "tx1"}, tree.Node(state.Path{"rf"}).Keys())

	leaf := tree.Node(state.Path{"serial"})
	assert.False(t, leaf.IsMapping())
	assert.Empty(t, leaf.Keys())
	assert.Equal(t, state.Path{"rf", "tx0"}, tree.Node(state.Path{"rf", "tx0"}).MountPath())
}

func TestTree_MarshalJSON(t *testing.T) {
	root := state.NewFrom(map[string]any{"a": map[string]any{"b": 1}})
	data, err := root.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":{"b":1}}`, string(data))
}

func TestParsePath(t *testing.T) {
	assert.Equal(t, state.Path{"a", "b", "c"}, state.ParsePath("/a//b/c/"))
	assert.Equal(t, state.Path{}, state.ParsePath(""))
	assert.Equal(t, "a/b", state.Path{"a", "b"}.String())
}

func TestTree_ConcurrentReadersAndWriters(t *testing.T) {
	root := state.New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				root.Update(state.Path{"w", string(rune('a' + i))}, j)
				_ = root.Get(state.Path{"w"})
			}
		}(i)
	}
	wg.Wait()
	assert.Len(t, root.Node(state.Path{"w"}).Keys(), 8)
}
