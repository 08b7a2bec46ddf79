// Package bench provides Context, the shared aggregate of one test run.
//
// A Context is created once per run from the assembled configuration and is
// passed explicitly to every test body. Remote-service handles are registered
// as factories and created on first use:
//
//	c.RegisterService("analyzer", func(c *bench.Context) (any, error) {
//		return dialAnalyzer(c, c.Config.String("analyzer.host"))
//	})
//	an, err := bench.ServiceAs[*Analyzer](c, "analyzer")
package bench
