package adapters

import "time"

type options struct {
	httpTimeout        time.Duration
	rateLimitPerMinute int
	userAgent          string
}

// Option tunes an adapter at construction.
type Option func(*options)

// WithHTTPTimeout bounds each HTTP round trip of the adapter.
func WithHTTPTimeout(d time.Duration) Option {
	return func(o *options) { o.httpTimeout = d }
}

// WithRateLimit caps requests per minute. Only the scraping adapter paces itself.
func WithRateLimit(perMinute int) Option {
	return func(o *options) { o.rateLimitPerMinute = perMinute }
}

// WithUserAgent overrides the scraping adapter's user agent.
func WithUserAgent(ua string) Option {
	return func(o *options) { o.userAgent = ua }
}

func applyOptions(opts []Option) options {
	o := options{
		httpTimeout:        15 * time.Second,
		rateLimitPerMinute: 6,
		userAgent:          "Mozilla/5.0 (compatible; visaflow-monitor/1.0)",
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
