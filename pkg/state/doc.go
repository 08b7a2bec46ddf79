/*
Package state implements the path-addressable, observable state tree that
mirrors live bench state to remote user interfaces.

Every node is either a leaf value or a mapping of keys to child nodes. Writing
through a path creates the missing intermediate mappings. Subscribers are
called synchronously, in mutation order, for every mutation at or below the
node they subscribed on, with the event path rebased to that node:

	root := state.New()
	root.Subscribe(func(ev state.Event) {
		fmt.Println(ev.Path, ev.Content)
	})
	root.Update(state.Path{"rf", "tx0", "power"}, 17.2) // prints [rf tx0 power] 17.2

A node can be grafted under another one. The grafted node keeps its own
subscribers and reports its later mutations to the new ancestors as well.
*/
package state
