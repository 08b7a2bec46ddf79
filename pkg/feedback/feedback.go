package feedback

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/benchrig/benchrig/pkg/domain"
)

// Mode selects which answers an operator may give.
type Mode string

const (
	PassFail      Mode = "pass_fail"
	PassFailRetry Mode = "pass_fail_retry"
)

func (m Mode) valid() bool { return m == PassFail || m == PassFailRetry }

// Outcome is the operator's verdict.
type Outcome string

const (
	Pass  Outcome = "pass"
	Fail  Outcome = "fail"
	Retry Outcome = "retry"
)

// ParseOutcome accepts the long and single-letter forms of an outcome.
func ParseOutcome(s string) (Outcome, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "p", "pass", "y", "yes", "ok":
		return Pass, nil
	case "f", "fail", "n", "no":
		return Fail, nil
	case "r", "retry":
		return Retry, nil
	}
	return "", fmt.Errorf("unrecognised outcome %q", s)
}

// Kind distinguishes verdict requests from scan requests.
type Kind string

const (
	KindVerdict Kind = "feedback"
	KindScan    Kind = "scan"
)

// Request is one suspension handed to a Channel.
type Request struct {
	ID     string `json:"id"`
	Kind   Kind   `json:"kind"`
	Prompt string `json:"prompt"`
	Media  string `json:"media,omitempty"`
	Mode   Mode   `json:"mode,omitempty"`
}

// Response is what a Channel delivers back. Outcome is set for verdict
// requests and Text for scan requests; Text may also carry an operator comment.
type Response struct {
	Outcome Outcome `json:"outcome,omitempty"`
	Text    string  `json:"text,omitempty"`
}

// Channel delivers a request to an operator and blocks until the answer
// arrives or ctx is done.
type Channel interface {
	Deliver(ctx context.Context, req Request) (Response, error)
}

// Result is the explicit outcome of Ask.
type Result struct {
	Request Request
	Outcome Outcome
	Comment string
}

// Err maps the outcome onto the error taxonomy: nil for Pass,
// a *domain.TestFailure for Fail and domain.ErrRetryRequested for Retry.
func (r Result) Err() error {
	switch r.Outcome {
	case Pass:
		return nil
	case Retry:
		return fmt.Errorf("%w: %s", domain.ErrRetryRequested, r.Request.Prompt)
	default:
		msg := fmt.Sprintf("operator rejected %q", r.Request.Prompt)
		if r.Comment != "" {
			msg += ": " + r.Comment
		}
		return &domain.TestFailure{Message: msg}
	}
}

// Requester suspends the calling test case until the operator answers.
type Requester struct {
	channel Channel
	logger  *slog.Logger
	seq     atomic.Uint64
}

// Option configures a Requester.
type Option func(*Requester)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Requester) {
		r.logger = logger
	}
}

// NewRequester creates a Requester delivering through ch.
func NewRequester(ch Channel, opts ...Option) *Requester {
	r := &Requester{channel: ch}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return r
}

// Ask requests a verdict. A Retry answer is only honoured in PassFailRetry
// mode; under PassFail it is recorded as Fail.
func (r *Requester) Ask(ctx context.Context, prompt, media string, mode Mode) (Result, error) {
	if mode == "" {
		mode = PassFail
	}
	if !mode.valid() {
		return Result{}, domain.Configf("feedback", "unknown mode %q", mode)
	}
	req := Request{ID: r.nextID(), Kind: KindVerdict, Prompt: prompt, Media: media, Mode: mode}

	r.logger.Info("Awaiting operator feedback", "id", req.ID, "prompt", prompt, "mode", mode)
	resp, err := r.channel.Deliver(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("feedback %s: %w", req.ID, err)
	}

	res := Result{Request: req, Outcome: resp.Outcome, Comment: resp.Text}
	switch resp.Outcome {
	case Pass, Fail:
	case Retry:
		if mode != PassFailRetry {
			r.logger.Warn("Retry answer outside retry mode, recording failure", "id", req.ID)
			res.Outcome = Fail
		}
	default:
		return Result{}, fmt.Errorf("feedback %s: invalid outcome %q", req.ID, resp.Outcome)
	}

	r.logger.Info("Operator feedback received", "id", req.ID, "outcome", res.Outcome)
	return res, nil
}

// Scan requests opaque text from the operator, typically a barcode.
func (r *Requester) Scan(ctx context.Context, prompt string) (string, error) {
	req := Request{ID: r.nextID(), Kind: KindScan, Prompt: prompt}

	r.logger.Info("Awaiting scan", "id", req.ID, "prompt", prompt)
	resp, err := r.channel.Deliver(ctx, req)
	if err != nil {
		return "", fmt.Errorf("scan %s: %w", req.ID, err)
	}
	return strings.TrimSpace(resp.Text), nil
}

func (r *Requester) nextID() string {
	return fmt.Sprintf("fb-%d", r.seq.Add(1))
}
