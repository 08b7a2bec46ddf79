package cli

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benchrig/benchrig/pkg/adapters/mcp"
	redisadapter "github.com/benchrig/benchrig/pkg/adapters/redis"
	"github.com/benchrig/benchrig/pkg/bench"
	"github.com/benchrig/benchrig/pkg/domain"
	"github.com/benchrig/benchrig/pkg/registry"
)

func stationRegistry() *registry.Registry {
	reg := registry.New()
	reg.Suite("id").Case("serial", func(c *bench.Context, _ registry.Params) error {
		_, err := c.Scan("serial", "Scan the board label")
		return err
	})
	reg.Suite("rf").Case("ch%d", func(c *bench.Context, p registry.Params) error {
		return c.Confirm("Is the channel LED on?")
	}).Iterate("channel", registry.FromConfig("channels"))
	return reg
}

func configDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rf_cal.yaml"), []byte("channels: 2\n"), 0o644))
	return dir
}

func statuses(rep *domain.Report) []domain.Status {
	out := make([]domain.Status, len(rep.Cases))
	for i, c := range rep.Cases {
		out[i] = c.Status
	}
	return out
}

func TestExecute_ScriptedAnswers(t *testing.T) {
	var out, errOut bytes.Buffer
	opts := RunOptions{Dir: configDir(t), TestType: "rf_cal", Answers: "scan=SN1,pass,fail", RunID: "r1"}

	rep, err := Execute(context.Background(), stationRegistry(), opts, IOStreams{In: strings.NewReader(""), Out: &out, Err: &errOut})
	require.ErrorIs(t, err, ErrCasesFailed)
	require.NotNil(t, rep)

	assert.Equal(t, []domain.Status{domain.StatusPassed, domain.StatusPassed, domain.StatusFailed}, statuses(rep))
	assert.Equal(t, "r1", rep.RunID)
	assert.Contains(t, out.String(), "PASS  id/serial")
	assert.Contains(t, out.String(), "FAIL  rf/ch1")
	assert.Equal(t, 1, ExitCode(err))
}

func TestExecute_Headless(t *testing.T) {
	var out, errOut bytes.Buffer
	in := strings.NewReader(`{"id":"fb-1","text":"SN9"}` + "\n" + `"pass"` + "\n" + `{"id":"fb-3","outcome":"pass"}` + "\n")
	opts := RunOptions{Dir: configDir(t), TestType: "rf_cal", Headless: true}

	rep, err := Execute(context.Background(), stationRegistry(), opts, IOStreams{In: in, Out: &out, Err: &errOut})
	require.NoError(t, err)
	assert.True(t, rep.OK())

	assert.Equal(t, 3, strings.Count(out.String(), `"type":"feedback_request"`))
	assert.NotContains(t, out.String(), "PASS", "case lines go to stderr in headless mode")
	assert.Contains(t, errOut.String(), "PASS  rf/ch0")
}

func TestExecute_OnlyFilter(t *testing.T) {
	var out bytes.Buffer
	opts := RunOptions{Dir: configDir(t), TestType: "rf_cal", Answers: "pass", Only: []string{"rf/ch0"}}

	rep, err := Execute(context.Background(), stationRegistry(), opts, IOStreams{In: strings.NewReader(""), Out: &out, Err: &out})
	require.NoError(t, err)
	require.Len(t, rep.Cases, 1)
	assert.Equal(t, "ch0", rep.Cases[0].ID)

	opts.Only = []string{"nothing/*"}
	_, err = Execute(context.Background(), stationRegistry(), opts, IOStreams{In: strings.NewReader(""), Out: &out, Err: &out})
	require.ErrorIs(t, err, domain.ErrConfiguration)
	assert.Equal(t, 2, ExitCode(err))
}

func TestExecute_MissingConfiguration(t *testing.T) {
	var out bytes.Buffer
	opts := RunOptions{Dir: t.TempDir(), TestType: "rf_cal", Answers: "pass"}
	rep, err := Execute(context.Background(), stationRegistry(), opts, IOStreams{In: strings.NewReader(""), Out: &out, Err: &out})
	assert.Nil(t, rep)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestExecute_RedisStoresReport(t *testing.T) {
	mr := miniredis.RunT(t)
	var out bytes.Buffer
	opts := RunOptions{
		Dir:      configDir(t),
		TestType: "rf_cal",
		Machine:  "bench01",
		Answers:  "scan=SN1,pass,pass",
		Redis:    mr.Addr(),
		RunID:    "r-redis",
		Redact:   []string{"^channel$"},
	}

	rep, err := Execute(context.Background(), stationRegistry(), opts, IOStreams{In: strings.NewReader(""), Out: &out, Err: &out})
	require.NoError(t, err)
	assert.True(t, rep.OK())

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	defer client.Close()
	store := redisadapter.NewFromClient(client)
	ids, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"r-redis"}, ids)

	stored, err := store.Load(context.Background(), "r-redis")
	require.NoError(t, err)
	require.Len(t, stored.Cases, 3)
	assert.Equal(t, "***", stored.Cases[1].Params[0].Value)
	assert.Equal(t, 0, rep.Cases[1].Params[0].Value, "returned report is not masked")

	assert.False(t, mr.Exists(redisadapter.DefaultLockPrefix+"lock:station:bench01"), "lock released")
}

func TestExecute_FeedbackAnsweredOverMCP(t *testing.T) {
	servers := make(chan *mcp.Server, 1)
	prev := startMCP
	startMCP = func(_ context.Context, srv *mcp.Server, port int, _ *slog.Logger) {
		assert.Equal(t, 7777, port)
		servers <- srv
	}
	t.Cleanup(func() { startMCP = prev })

	var out bytes.Buffer
	opts := RunOptions{Dir: configDir(t), TestType: "rf_cal", MCPPort: 7777, RunID: "r-mcp"}
	type result struct {
		rep *domain.Report
		err error
	}
	done := make(chan result, 1)
	go func() {
		rep, err := Execute(context.Background(), stationRegistry(), opts, IOStreams{In: strings.NewReader(""), Out: &out, Err: &out})
		done <- result{rep, err}
	}()

	var srv *mcp.Server
	select {
	case srv = <-servers:
	case <-time.After(2 * time.Second):
		t.Fatal("MCP server not started")
	}

	answers := []struct{ id, outcome, text string }{
		{"fb-1", "", "SN7"},
		{"fb-2", "pass", ""},
		{"fb-3", "fail", "dim"},
	}
	for _, a := range answers {
		require.Eventually(t, func() bool {
			id, err := srv.RespondFeedback(a.outcome, a.text)
			return err == nil && id == a.id
		}, 2*time.Second, 5*time.Millisecond, "answer %s", a.id)
	}

	var res result
	select {
	case res = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("run did not finish")
	}
	require.ErrorIs(t, res.err, ErrCasesFailed)
	assert.Equal(t, []domain.Status{domain.StatusPassed, domain.StatusPassed, domain.StatusFailed}, statuses(res.rep))
}

func TestListCommand(t *testing.T) {
	noop := func(*bench.Context, registry.Params) error { return nil }
	reg := registry.New()
	reg.Suite("power").SuiteCritical().Case("boot", noop)
	reg.Suite("rf").Case("tx%d", noop).Iterate("tx", registry.Range(2))
	reg.Suite("rf").Case("later", nil).NotImplemented()

	var out bytes.Buffer
	cmd := NewRunCommand(reg)
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"list", "--only", "rf/*", "--only", "power/*"})
	require.NoError(t, cmd.Execute())

	assert.Equal(t, "power/boot [suite_critical]\nrf/tx0\nrf/tx1\nrf/later [not_implemented]\n", out.String())
}

func TestListCommand_Mermaid(t *testing.T) {
	reg := registry.New()
	reg.Suite("rf").Case("tx%d", func(*bench.Context, registry.Params) error { return nil }).Iterate("tx", registry.Range(2))

	var out bytes.Buffer
	cmd := NewRunCommand(reg)
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"list", "--mermaid"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "rf__tx0 --> rf__tx1")
}

func TestRunCommand_RequiresType(t *testing.T) {
	cmd := NewRunCommand(registry.New())
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"run"})
	assert.Error(t, cmd.Execute())
}

func TestRunCommand_HeadlessAndAnswersConflict(t *testing.T) {
	cmd := NewRunCommand(registry.New())
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"run", "--type", "rf_cal", "--headless", "--answers", "pass"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be used together")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(&domain.CriticalAbort{Suite: "s", CaseID: "c", Cause: domain.Failf("x")}))
	assert.Equal(t, 2, ExitCode(domain.Configf("x", "bad")))
}
