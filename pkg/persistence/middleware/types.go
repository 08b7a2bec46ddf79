// Package middleware wraps report stores with extra behavior such as
// redacting sensitive values before they leave the station.
package middleware

import "github.com/benchrig/benchrig/pkg/ports"

// Middleware wraps a ReportStore to add behavior.
type Middleware func(ports.ReportStore) ports.ReportStore

// Chain applies mws so that the first one is the outermost wrapper.
func Chain(store ports.ReportStore, mws ...Middleware) ports.ReportStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
