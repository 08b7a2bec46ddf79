package feedback

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

// MaxInputSize bounds one line of operator input.
const MaxInputSize = 4096

var (
	ErrInputTooLarge = errors.New("input exceeds maximum allowed size")
	ErrInvalidUTF8   = errors.New("input contains invalid UTF-8 sequences")
)

// Renderer turns markdown prompt text into terminal output.
type Renderer func(string) (string, error)

// ConsoleChannel asks the operator on a terminal. Verdicts are read as
// p/f/r (or pass/fail/retry); scans return the typed line.
type ConsoleChannel struct {
	input    *lineSource
	writer   io.Writer
	renderer Renderer
}

// ConsoleOption configures a ConsoleChannel.
type ConsoleOption func(*ConsoleChannel)

// WithRenderer renders prompts before they are printed.
func WithRenderer(r Renderer) ConsoleOption {
	return func(c *ConsoleChannel) {
		c.renderer = r
	}
}

// NewConsoleChannel reads answers from r and prints prompts to w.
// Nil arguments default to stdin and stdout.
func NewConsoleChannel(r io.Reader, w io.Writer, opts ...ConsoleOption) *ConsoleChannel {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	c := &ConsoleChannel{input: newLineSource(r), writer: w}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *ConsoleChannel) Deliver(ctx context.Context, req Request) (Response, error) {
	lines := c.input.Lines()

	c.render(req)
	for {
		fmt.Fprint(c.writer, c.hint(req))
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
			text, err := sanitize(strings.TrimSpace(res.text))
			if err != nil {
				fmt.Fprintf(c.writer, "Error: %v. Please try again.\n", err)
				continue
			}
			if req.Kind == KindScan {
				return Response{Text: text}, nil
			}
			o, err := ParseOutcome(text)
			if err != nil || (o == Retry && req.Mode != PassFailRetry) {
				fmt.Fprintf(c.writer, "Please answer %s.\n", c.choices(req))
				continue
			}
			return Response{Outcome: o}, nil
		}
	}
}

func (c *ConsoleChannel) render(req Request) {
	text := req.Prompt
	if req.Media != "" {
		text += fmt.Sprintf("\n\n![%s](%s)", req.Media, req.Media)
	}
	if c.renderer != nil {
		if out, err := c.renderer(text); err == nil {
			text = out
		}
	}
	fmt.Fprintln(c.writer, strings.TrimSpace(text))
}

func (c *ConsoleChannel) hint(req Request) string {
	if req.Kind == KindScan {
		return "scan> "
	}
	return "[" + c.choices(req) + "]> "
}

func (c *ConsoleChannel) choices(req Request) string {
	if req.Mode == PassFailRetry {
		return "p/f/r"
	}
	return "p/f"
}

type lineResult struct {
	text string
	err  error
}

// lineSource reads lines on a background goroutine so a pending read never
// blocks cancellation. The goroutine starts on first use.
type lineSource struct {
	reader *bufio.Reader
	lines  chan lineResult
	once   sync.Once
}

func newLineSource(r io.Reader) *lineSource {
	return &lineSource{reader: bufio.NewReader(r)}
}

// Lines returns the channel of input lines. It is closed at EOF.
func (s *lineSource) Lines() <-chan lineResult {
	s.once.Do(func() {
		s.lines = make(chan lineResult)
		go s.pump()
	})
	return s.lines
}

func (s *lineSource) pump() {
	for {
		text, err := s.reader.ReadString('\n')
		if text != "" {
			s.lines <- lineResult{text: text}
		}
		if err != nil {
			if err != io.EOF {
				s.lines <- lineResult{err: err}
			}
			close(s.lines)
			return
		}
	}
}

// sanitize rejects oversized or invalid input and strips control characters.
func sanitize(input string) (string, error) {
	if len(input) > MaxInputSize {
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrInputTooLarge, len(input), MaxInputSize)
	}
	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\t' {
			return -1
		}
		return r
	}, input), nil
}
