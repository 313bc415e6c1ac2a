// Package completion defines the boundary to the generative model used for
// anomaly classification: a prompt goes in, text comes out. Transport, auth
// and model selection live behind the Service interface.
package completion

import "context"

// Options tune a single generation call. Zero values mean "use the service
// default".
type Options struct {
	MaxTokens   int32
	Temperature *float32
}

// Option mutates Options.
type Option func(*Options)

// WithMaxTokens caps the generated output length for one call.
func WithMaxTokens(n int32) Option {
	return func(o *Options) { o.MaxTokens = n }
}

// WithTemperature overrides the sampling temperature for one call.
func WithTemperature(t float32) Option {
	return func(o *Options) { o.Temperature = &t }
}

// Service generates text from a prompt. Implementations must be safe for
// concurrent use; the anomaly detector fires a batch of calls at once.
type Service interface {
	Generate(ctx context.Context, prompt string, opts ...Option) (string, error)
}

// Apply folds a list of Option into a concrete Options value.
func Apply(opts []Option) Options {
	var o Options
	for _, fn := range opts {
		fn(&o)
	}
	return o
}
