// Package httpclient is a small instrumented HTTP client for external
// collaborators: every request carries a span and a per-provider counter.
package httpclient

import (
	"net/http"
	"time"
)

// Options configures a Client.
type Options struct {
	client         *http.Client
	providerName   string
	requestTimeout time.Duration
	headers        map[string]string
	baseURL        string
}

// Option configures Options.
type Option func(*Options)

// WithClient supplies a pre-built http.Client.
func WithClient(c *http.Client) Option {
	return func(o *Options) {
		o.client = c
	}
}

// WithProviderName names the upstream service in metrics and traces.
func WithProviderName(name string) Option {
	return func(o *Options) {
		o.providerName = name
	}
}

// WithRequestTimeout sets the per-request timeout.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.requestTimeout = timeout
	}
}

// WithHeaders sets headers applied to every request.
func WithHeaders(headers map[string]string) Option {
	return func(o *Options) {
		o.headers = headers
	}
}

// WithBaseURL prefixes relative request URLs.
func WithBaseURL(url string) Option {
	return func(o *Options) {
		o.baseURL = url
	}
}
