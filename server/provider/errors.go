package provider

import "errors"

var (
	// ErrExternalService wraps every failed model call: transport, auth,
	// quota, an empty reply, or a rejected call while the breaker is open.
	ErrExternalService = errors.New("model provider call failed")

	// ErrUnsupportedProvider is returned by New for unknown provider names.
	ErrUnsupportedProvider = errors.New("unsupported provider")
)
