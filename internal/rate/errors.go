package rate

import "errors"

var (
	// ErrRateLimited is returned when a counter is over its budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps every Redis failure.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
