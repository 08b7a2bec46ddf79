package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// JSONChannel speaks JSON Lines with a supervising process: each request is
// written as one object and the answer is read from the next input line.
//
// An answer is either a JSON object {"id", "outcome", "text"}, a JSON string,
// or bare text. Objects carrying a different id are ignored.
type JSONChannel struct {
	input *lineSource

	mu      sync.Mutex
	encoder *json.Encoder
}

type jsonEnvelope struct {
	Type string `json:"type"`
	Request
}

type jsonAnswer struct {
	ID      string  `json:"id"`
	Outcome Outcome `json:"outcome"`
	Text    string  `json:"text"`
}

// NewJSONChannel reads answers from r and writes requests to w.
// Nil arguments default to stdin and stdout.
func NewJSONChannel(r io.Reader, w io.Writer) *JSONChannel {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	return &JSONChannel{input: newLineSource(r), encoder: json.NewEncoder(w)}
}

func (c *JSONChannel) Deliver(ctx context.Context, req Request) (Response, error) {
	lines := c.input.Lines()

	if err := c.emit(jsonEnvelope{Type: "feedback_request", Request: req}); err != nil {
		return Response{}, err
	}
	for {
		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		case res, ok := <-lines:
			if !ok {
				return Response{}, io.EOF
			}
			if res.err != nil {
				return Response{}, res.err
			}
			resp, ok, err := decodeJSONAnswer(strings.TrimSpace(res.text), req)
			if err != nil {
				_ = c.emit(map[string]string{"type": "feedback_error", "id": req.ID, "error": err.Error()})
				continue
			}
			if ok {
				return resp, nil
			}
		}
	}
}

func (c *JSONChannel) emit(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.encoder.Encode(v); err != nil {
		return fmt.Errorf("write feedback request: %w", err)
	}
	return nil
}

func decodeJSONAnswer(line string, req Request) (Response, bool, error) {
	if line == "" {
		return Response{}, false, nil
	}
	text, err := sanitize(line)
	if err != nil {
		return Response{}, false, err
	}

	var raw string
	switch {
	case strings.HasPrefix(text, "{"):
		var a jsonAnswer
		if err := json.Unmarshal([]byte(text), &a); err != nil {
			return Response{}, false, fmt.Errorf("malformed answer: %w", err)
		}
		if a.ID != "" && a.ID != req.ID {
			return Response{}, false, nil
		}
		if req.Kind == KindScan {
			return Response{Text: a.Text}, true, nil
		}
		o, err := ParseOutcome(string(a.Outcome))
		if err != nil {
			return Response{}, false, err
		}
		return checkMode(Response{Outcome: o, Text: a.Text}, req)
	case strings.HasPrefix(text, `"`):
		if err := json.Unmarshal([]byte(text), &raw); err != nil {
			return Response{}, false, fmt.Errorf("malformed answer: %w", err)
		}
	default:
		raw = text
	}

	if req.Kind == KindScan {
		return Response{Text: raw}, true, nil
	}
	o, err := ParseOutcome(raw)
	if err != nil {
		return Response{}, false, err
	}
	return checkMode(Response{Outcome: o}, req)
}

func checkMode(resp Response, req Request) (Response, bool, error) {
	if resp.Outcome == Retry && req.Mode != PassFailRetry {
		return Response{}, false, fmt.Errorf("retry is not allowed in mode %s", req.Mode)
	}
	return resp, true, nil
}
