// Package middleware decorates a ports.RunStore, so archived runs can be
// redacted or encrypted before they reach Redis or the disk.
package middleware

import "github.com/aretw0/botflow/pkg/ports"

// Middleware allows wrapping a RunStore to add behavior.
type Middleware func(ports.RunStore) ports.RunStore

// Chain applies mws to store; the first middleware sees a snapshot first.
func Chain(store ports.RunStore, mws ...Middleware) ports.RunStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
