// Package middleware holds the echo middlewares of the service: request ids,
// request-scoped logging, tracing, rate limiting, the global error handler and
// the anonymous visitor identity cookie.
package middleware
