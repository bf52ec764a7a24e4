package gateway

import "github.com/hanpama/portalgraph/internal/loader"

// Options configures a Runtime.
type Options struct {
	// DefaultActor is the acting identity of requests that carry none.
	DefaultActor int64
	// LoaderOptions configure the registry created for executions that do
	// not bring their own.
	LoaderOptions []loader.Option
	// Locales are the locales translated fields accept as flat arguments.
	// They should match the locales the schema was built with.
	Locales []string
}

// Option mutates Options.
type Option func(*Options)

// WithDefaultActor sets the identity used when a request names no actor.
func WithDefaultActor(id int64) Option {
	return func(o *Options) { o.DefaultActor = id }
}

// WithLoaderOptions sets the options of fallback registries.
func WithLoaderOptions(opts ...loader.Option) Option {
	return func(o *Options) { o.LoaderOptions = append(o.LoaderOptions, opts...) }
}

// WithLocales sets the locales read from flat translated-text arguments.
func WithLocales(locales ...string) Option {
	return func(o *Options) { o.Locales = append([]string(nil), locales...) }
}
