package sentinel

import "errors"

// Infrastructure facts returned by stores, clients and caches. Services
// translate them into domain errors; they never reach a transport directly.
//
//   - ErrNotFound: the record does not exist in the backing store
//   - ErrConflict: a concurrent writer owns the resource
//   - ErrExpired: a session or token outlived its TTL
//   - ErrInvalidState: the entity is in the wrong state for the operation
//   - ErrUnavailable: the backend cannot be reached or is shedding load
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
