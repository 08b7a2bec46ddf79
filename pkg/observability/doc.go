/*
Package observability turns runner lifecycle events into Prometheus metrics
and structured audit logs.

	m := observability.NewMetrics()
	r := runner.New(runner.WithHooks(m.Hooks()), runner.WithHooks(observability.LogHooks(logger)))
	http.Handle("/metrics", m.Handler())
*/
package observability
