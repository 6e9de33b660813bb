package services

import "time"

type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now for timestamps and due-date checks.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func newOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
