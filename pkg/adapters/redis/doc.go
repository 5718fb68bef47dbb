// Package redis provides Redis-backed breakpoint and run stores, so breakpoints
// and run history survive restarts and are shared between replicas.
package redis
