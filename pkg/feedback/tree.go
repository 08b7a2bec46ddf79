package feedback

import (
	"context"
	"fmt"

	"github.com/benchrig/benchrig/pkg/state"
)

// TreeChannel publishes the pending request under the "feedback" key of a
// state tree and waits for an answer written to "feedback/response", for
// instance by the HTTP relay or the MCP server.
//
// The answer is either a string ("pass", "f", a scanned serial) or a mapping
// {"id", "outcome", "text"}. A mapping whose id does not match the pending
// request is ignored.
type TreeChannel struct {
	root *state.Tree
}

// NewTreeChannel creates a channel rooted at root.
func NewTreeChannel(root *state.Tree) *TreeChannel {
	return &TreeChannel{root: root}
}

var responsePath = state.Path{"feedback", "response"}

func (c *TreeChannel) Deliver(ctx context.Context, req Request) (Response, error) {
	answers := make(chan Response, 1)
	errs := make(chan error, 1)

	unsubscribe := c.root.Subscribe(func(state.Event) {
		raw, ok := c.root.Lookup(responsePath)
		if !ok || raw == nil {
			return
		}
		resp, matched, err := decodeResponse(raw, req)
		if !matched {
			return
		}
		if err != nil {
			select {
			case errs <- err:
			default:
			}
			return
		}
		select {
		case answers <- resp:
		default:
		}
	})
	defer unsubscribe()

	c.root.Set("feedback", map[string]any{
		"id":     req.ID,
		"kind":   string(req.Kind),
		"prompt": req.Prompt,
		"media":  req.Media,
		"mode":   string(req.Mode),
		"status": "pending",
	})

	for {
		select {
		case <-ctx.Done():
			c.finish(req, "cancelled")
			return Response{}, ctx.Err()
		case resp := <-answers:
			c.finish(req, "answered")
			return resp, nil
		case err := <-errs:
			// An unusable answer is reported back and the request stays open.
			c.root.Delete(responsePath)
			c.root.Update(state.Path{"feedback", "error"}, err.Error())
		}
	}
}

func (c *TreeChannel) finish(req Request, status string) {
	c.root.Set("feedback", map[string]any{"id": req.ID, "status": status})
}

func decodeResponse(raw any, req Request) (Response, bool, error) {
	var outcome, text string
	switch v := raw.(type) {
	case string:
		if req.Kind == KindScan {
			return Response{Text: v}, true, nil
		}
		outcome = v
	case map[string]any:
		if id, ok := v["id"].(string); ok && id != req.ID {
			return Response{}, false, nil
		}
		outcome, _ = v["outcome"].(string)
		text, _ = v["text"].(string)
	default:
		return Response{}, true, fmt.Errorf("unsupported response %T", raw)
	}

	if req.Kind == KindScan {
		return Response{Text: text}, true, nil
	}
	o, err := ParseOutcome(outcome)
	if err != nil {
		return Response{}, true, err
	}
	return Response{Outcome: o, Text: text}, true, nil
}
