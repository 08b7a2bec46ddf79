package feedback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrNoAnswer is returned by a ScriptedChannel that has run out of answers.
var ErrNoAnswer = errors.New("no scripted answer left")

// ScriptedChannel replays canned answers in order. It backs headless runs
// and tests.
type ScriptedChannel struct {
	mu       sync.Mutex
	answers  []Response
	Requests []Request
}

// NewScriptedChannel returns a channel that answers with the given responses.
func NewScriptedChannel(answers ...Response) *ScriptedChannel {
	return &ScriptedChannel{answers: answers}
}

// ParseScript builds a ScriptedChannel from a comma separated list such as
// "pass,f,retry,scan=SN1234". Each scan= item answers one scan request.
func ParseScript(script string) (*ScriptedChannel, error) {
	var answers []Response
	for _, item := range strings.Split(script, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if text, ok := strings.CutPrefix(item, "scan="); ok {
			answers = append(answers, Response{Text: text})
			continue
		}
		o, err := ParseOutcome(item)
		if err != nil {
			return nil, err
		}
		answers = append(answers, Response{Outcome: o})
	}
	return NewScriptedChannel(answers...), nil
}

func (c *ScriptedChannel) Deliver(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Requests = append(c.Requests, req)
	if len(c.answers) == 0 {
		return Response{}, fmt.Errorf("%w for %q", ErrNoAnswer, req.Prompt)
	}
	next := c.answers[0]
	c.answers = c.answers[1:]
	return next, nil
}

// Remaining reports how many answers have not been consumed.
func (c *ScriptedChannel) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.answers)
}
