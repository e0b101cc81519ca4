package uv

import (
	"log/slog"
	"math/rand/v2"
)

type options struct {
	logger    *slog.Logger
	rng       *rand.Rand
	snapLimit float64
}

func defaultOptions() options {
	return options{
		logger:    slog.Default(),
		snapLimit: DefaultSnapLimit,
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.rng == nil {
		o.rng = NewRand(1)
	}
	return o
}

// Option configures a Wrangler or UnwrapSolver.
type Option func(*options)

// WithLogger sets the logger diagnostics go to.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// LoggerOf returns the logger opts select, slog.Default when none does.
func LoggerOf(opts ...Option) *slog.Logger {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o.logger
}

// WithRand sets the random source used for packing and reseeding.
func WithRand(r *rand.Rand) Option {
	return func(o *options) { o.rng = r }
}

// WithSeed seeds a fresh random source.
func WithSeed(seed uint64) Option {
	return func(o *options) { o.rng = NewRand(seed) }
}

// WithSnapLimit sets the corner merge distance.
func WithSnapLimit(limit float64) Option {
	return func(o *options) { o.snapLimit = limit }
}

// NewRand returns the deterministic generator used throughout the package.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}
