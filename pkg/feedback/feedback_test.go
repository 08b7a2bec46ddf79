package feedback

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benchrig/benchrig/pkg/domain"
	"github.com/benchrig/benchrig/pkg/state"
)

func TestRequester_Outcomes(t *testing.T) {
	ch := NewScriptedChannel(
		Response{Outcome: Pass},
		Response{Outcome: Fail, Text: "LED is red"},
		Response{Outcome: Retry},
		Response{Outcome: Retry},
	)
	r := NewRequester(ch)
	ctx := context.Background()

	res, err := r.Ask(ctx, "LED green?", "", PassFail)
	require.NoError(t, err)
	assert.Equal(t, Pass, res.Outcome)
	assert.NoError(t, res.Err())

	res, err = r.Ask(ctx, "LED green?", "", PassFail)
	require.NoError(t, err)
	assert.Equal(t, Fail, res.Outcome)
	var tf *domain.TestFailure
	require.ErrorAs(t, res.Err(), &tf)
	assert.Contains(t, tf.Message, "LED is red")

	res, err = r.Ask(ctx, "LED green?", "led.png", PassFailRetry)
	require.NoError(t, err)
	assert.Equal(t, Retry, res.Outcome)
	assert.ErrorIs(t, res.Err(), domain.ErrRetryRequested)
	assert.NotErrorIs(t, res.Err(), domain.ErrTestFailure)

	res, err = r.Ask(ctx, "LED green?", "", PassFail)
	require.NoError(t, err)
	assert.Equal(t, Fail, res.Outcome, "retry is not offered under pass_fail")

	require.Len(t, ch.Requests, 4)
	assert.Equal(t, "led.png", ch.Requests[2].Media)
	assert.NotEqual(t, ch.Requests[0].ID, ch.Requests[1].ID)
}

func TestRequester_Errors(t *testing.T) {
	r := NewRequester(NewScriptedChannel(Response{Outcome: "maybe"}))

	_, err := r.Ask(context.Background(), "q", "", Mode("yes_no"))
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = r.Ask(context.Background(), "q", "", PassFail)
	assert.ErrorContains(t, err, "invalid outcome")

	_, err = r.Ask(context.Background(), "q", "", PassFail)
	assert.ErrorIs(t, err, ErrNoAnswer)
}

func TestRequester_Scan(t *testing.T) {
	r := NewRequester(NewScriptedChannel(Response{Text: " SN-0042 \n"}))

	serial, err := r.Scan(context.Background(), "Scan the board label")
	require.NoError(t, err)
	assert.Equal(t, "SN-0042", serial)
}

func TestParseScript(t *testing.T) {
	ch, err := ParseScript("pass, f,retry,,scan=SN1")
	require.NoError(t, err)
	assert.Equal(t, 4, ch.Remaining())

	resp, err := ch.Deliver(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, Pass, resp.Outcome)

	_, err = ParseScript("pass,maybe")
	assert.Error(t, err)
}

func deliverAsync(ctx context.Context, ch Channel, req Request) (<-chan Response, <-chan error) {
	out := make(chan Response, 1)
	errs := make(chan error, 1)
	go func() {
		resp, err := ch.Deliver(ctx, req)
		if err != nil {
			errs <- err
			return
		}
		out <- resp
	}()
	return out, errs
}

func waitPending(t *testing.T, root *state.Tree, id string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return root.Get(state.Path{"feedback", "id"}) == id &&
			root.Get(state.Path{"feedback", "status"}) == "pending"
	}, time.Second, time.Millisecond)
}

func TestTreeChannel_RoundTrip(t *testing.T) {
	root := state.New()
	ch := NewTreeChannel(root)

	out, errs := deliverAsync(context.Background(), ch, Request{ID: "fb-1", Kind: KindVerdict, Prompt: "LED?", Mode: PassFailRetry})
	waitPending(t, root, "fb-1")
	assert.Equal(t, "LED?", root.Get(state.Path{"feedback", "prompt"}))

	// An answer for another request is ignored.
	root.Update(state.Path{"feedback", "response"}, map[string]any{"id": "fb-0", "outcome": "pass"})
	// An unusable answer is reported and the request stays open.
	root.Update(state.Path{"feedback", "response"}, "maybe")
	require.Eventually(t, func() bool {
		msg, _ := root.Get(state.Path{"feedback", "error"}).(string)
		return strings.Contains(msg, "unrecognised outcome")
	}, time.Second, time.Millisecond)

	root.Update(state.Path{"feedback", "response"}, map[string]any{"id": "fb-1", "outcome": "retry", "text": "flaky"})

	select {
	case resp := <-out:
		assert.Equal(t, Response{Outcome: Retry, Text: "flaky"}, resp)
	case err := <-errs:
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(time.Second):
		t.Fatal("no answer delivered")
	}
	assert.Equal(t, "answered", root.Get(state.Path{"feedback", "status"}))
}

func TestTreeChannel_Scan(t *testing.T) {
	root := state.New()
	ch := NewTreeChannel(root)

	out, _ := deliverAsync(context.Background(), ch, Request{ID: "fb-7", Kind: KindScan, Prompt: "Scan"})
	waitPending(t, root, "fb-7")
	root.Update(state.Path{"feedback", "response"}, "SN-77")

	select {
	case resp := <-out:
		assert.Equal(t, "SN-77", resp.Text)
	case <-time.After(time.Second):
		t.Fatal("no answer delivered")
	}
}

func TestTreeChannel_Cancel(t *testing.T) {
	root := state.New()
	ch := NewTreeChannel(root)
	ctx, cancel := context.WithCancel(context.Background())

	_, errs := deliverAsync(ctx, ch, Request{ID: "fb-2", Kind: KindVerdict, Prompt: "?", Mode: PassFail})
	waitPending(t, root, "fb-2")
	cancel()

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("deliver did not return")
	}
	assert.Equal(t, "cancelled", root.Get(state.Path{"feedback", "status"}))
}

func TestConsoleChannel(t *testing.T) {
	in := strings.NewReader("maybe\nr\np\n  SN-9 \n")
	var out bytes.Buffer
	ch := NewConsoleChannel(in, &out, WithRenderer(func(s string) (string, error) {
		return "## " + s, nil
	}))

	resp, err := ch.Deliver(context.Background(), Request{Kind: KindVerdict, Prompt: "LED green?", Mode: PassFail})
	require.NoError(t, err)
	assert.Equal(t, Pass, resp.Outcome)
	assert.Contains(t, out.String(), "## LED green?")
	assert.Equal(t, 2, strings.Count(out.String(), "Please answer p/f."))

	resp, err = ch.Deliver(context.Background(), Request{Kind: KindScan, Prompt: "Scan"})
	require.NoError(t, err)
	assert.Equal(t, "SN-9", resp.Text)

	_, err = ch.Deliver(context.Background(), Request{Kind: KindScan, Prompt: "Scan"})
	assert.ErrorIs(t, err, io.EOF)
}

func TestSanitize(t *testing.T) {
	got, err := sanitize("SN\x1b[31m-1\x00")
	require.NoError(t, err)
	assert.Equal(t, "SN[31m-1", got)

	_, err = sanitize(strings.Repeat("x", MaxInputSize+1))
	assert.ErrorIs(t, err, ErrInputTooLarge)

	_, err = sanitize("\xff")
	assert.ErrorIs(t, err, ErrInvalidUTF8)
}

func TestJSONChannel(t *testing.T) {
	in := strings.NewReader(strings.Join([]string{
		`{"id":"other","outcome":"pass"}`,
		`{"id":"fb-1","outcome":"retry"}`,
		`{"id":"fb-1","outcome":"fail","text":"no light"}`,
		`"SN-42"`,
		`p`,
	}, "\n") + "\n")
	var out bytes.Buffer
	ch := NewJSONChannel(in, &out)

	resp, err := ch.Deliver(context.Background(), Request{ID: "fb-1", Kind: KindVerdict, Prompt: "LED?", Mode: PassFail})
	require.NoError(t, err)
	assert.Equal(t, Response{Outcome: Fail, Text: "no light"}, resp)

	resp, err = ch.Deliver(context.Background(), Request{ID: "fb-2", Kind: KindScan, Prompt: "Scan"})
	require.NoError(t, err)
	assert.Equal(t, "SN-42", resp.Text)

	resp, err = ch.Deliver(context.Background(), Request{ID: "fb-3", Kind: KindVerdict, Prompt: "Beep?", Mode: PassFailRetry})
	require.NoError(t, err)
	assert.Equal(t, Pass, resp.Outcome)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4, "three requests and one rejected retry")
	assert.Contains(t, lines[0], `"type":"feedback_request"`)
	assert.Contains(t, lines[0], `"id":"fb-1"`)
	assert.Contains(t, lines[1], `"type":"feedback_error"`)
}
