// Package registry declares test suites and expands them into a flat plan.
//
// Cases are declared with an explicit builder. Each Iterate call binds one
// parameter to a value source; stacked iterations form a cartesian product
// with the first declared parameter as the outermost loop, and a printf name
// template computes the identifier of every expansion.
//
//	reg := registry.New()
//	reg.Suite("rf").SuiteCritical().
//		Case("tx%d_band%v", measurePower).
//		Iterate("tx", registry.FromConfig("transceivers")).
//		Iterate("band", registry.Values(1, 3, 7)).
//		Criteria(map[string]string{"power": "17 <= value <= 21"})
//
// Expansion happens against a bench.Context, so sources may depend on the
// assembled configuration.
package registry
