// Package middleware decorates an OutputStore with behaviour applied to every
// persisted output, such as encryption at rest or masking of sensitive keys.
package middleware

import "github.com/aretw0/lattice/pkg/ports"

// Middleware wraps an OutputStore to add behavior.
type Middleware func(ports.OutputStore) ports.OutputStore

// Chain applies mws to store. The first middleware is the outermost one, so it
// sees an output before the others do on Save.
func Chain(store ports.OutputStore, mws ...Middleware) ports.OutputStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
