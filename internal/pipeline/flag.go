package pipeline

import "sync/atomic"

// RateLimitFlag is a process-wide one-way signal that the provider has
// throttled at least one request. Once tripped it stays tripped for the
// process lifetime; the scheduler reads it before each batch and halves its
// effective concurrency while it is set. Recovery is by process restart,
// matching the provider's per-minute quota windows.
type RateLimitFlag struct {
	tripped atomic.Bool
}

// NewRateLimitFlag returns an untripped flag.
func NewRateLimitFlag() *RateLimitFlag {
	return &RateLimitFlag{}
}

// Trip latches the flag. Safe to call from any goroutine, any number of times.
func (f *RateLimitFlag) Trip() {
	f.tripped.Store(true)
}

// Tripped reports whether any request has ever been rate limited.
func (f *RateLimitFlag) Tripped() bool {
	return f.tripped.Load()
}
