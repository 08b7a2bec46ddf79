package tui

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/benchrig/benchrig/pkg/domain"
)

// Reporter prints one line per finished case and a progress bar while the
// run executes.
type Reporter struct {
	mu     sync.Mutex
	w      io.Writer
	bar    *progressbar.ProgressBar
	noBar  bool
	colors map[domain.Status]*color.Color
	bold   *color.Color
}

// ReporterOption configures a Reporter.
type ReporterOption func(*Reporter)

// WithoutColor disables ANSI colors.
func WithoutColor() ReporterOption {
	return func(r *Reporter) {
		for _, c := range r.colors {
			c.DisableColor()
		}
		r.bold.DisableColor()
	}
}

// WithoutProgress disables the progress bar. Case lines are still printed.
func WithoutProgress() ReporterOption {
	return func(r *Reporter) {
		r.noBar = true
	}
}

// NewReporter writes to w.
func NewReporter(w io.Writer, opts ...ReporterOption) *Reporter {
	r := &Reporter{
		w: w,
		colors: map[domain.Status]*color.Color{
			domain.StatusPassed:  color.New(color.FgGreen, color.Bold),
			domain.StatusFailed:  color.New(color.FgRed, color.Bold),
			domain.StatusSkipped: color.New(color.FgYellow),
			domain.StatusAborted: color.New(color.FgMagenta),
		},
		bold: color.New(color.Bold),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var labels = map[domain.Status]string{
	domain.StatusPassed:  "PASS ",
	domain.StatusFailed:  "FAIL ",
	domain.StatusSkipped: "SKIP ",
	domain.StatusAborted: "ABORT",
}

// Hooks returns the lifecycle hooks driving the reporter.
func (r *Reporter) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnRunStart:   r.runStart,
		OnCaseStart:  r.caseStart,
		OnCaseFinish: r.caseFinish,
		OnRunFinish:  r.runFinish,
	}
}

func (r *Reporter) runStart(_ context.Context, e *domain.RunEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "%s %s (%d cases)\n", r.bold.Sprint("run"), e.RunID, e.Total)
	if r.noBar || e.Total == 0 {
		return
	}
	r.bar = progressbar.NewOptions(e.Total,
		progressbar.OptionSetWriter(r.w),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionClearOnFinish(),
	)
}

func (r *Reporter) caseStart(_ context.Context, e *domain.CaseEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bar != nil {
		r.bar.Describe(e.Suite + "/" + e.CaseID)
	}
}

func (r *Reporter) caseFinish(_ context.Context, e *domain.CaseEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bar != nil {
		_ = r.bar.Clear()
	}
	label := labels[e.Status]
	if c, ok := r.colors[e.Status]; ok {
		label = c.Sprint(label)
	}
	line := fmt.Sprintf("%s %s/%s", label, e.Suite, e.CaseID)
	if e.Duration > 0 {
		line += fmt.Sprintf(" (%s)", e.Duration.Round(1e6))
	}
	fmt.Fprintln(r.w, line)
	if e.Err != nil && e.Status != domain.StatusSkipped {
		fmt.Fprintf(r.w, "      %v\n", e.Err)
	}
	if r.bar != nil {
		_ = r.bar.Add(1)
	}
}

func (r *Reporter) runFinish(_ context.Context, e *domain.RunEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bar != nil {
		_ = r.bar.Finish()
		r.bar = nil
	}
	fmt.Fprintf(r.w, "%s passed=%s failed=%s skipped=%s aborted=%s in %s\n",
		r.bold.Sprint("done"),
		r.colors[domain.StatusPassed].Sprint(e.Passed),
		r.colors[domain.StatusFailed].Sprint(e.Failed),
		r.colors[domain.StatusSkipped].Sprint(e.Skipped),
		r.colors[domain.StatusAborted].Sprint(e.Aborted),
		e.Elapsed.Round(1e6),
	)
	if e.Err != nil {
		fmt.Fprintf(r.w, "%s %v\n", r.colors[domain.StatusFailed].Sprint("error"), e.Err)
	}
}
