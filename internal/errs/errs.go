// Package errs defines the error shapes returned to API clients.
//
// Every failure leaves the API as an HTTPError serialized to JSON, so the
// front end can rely on one shape for field errors, status and codes.
package errs
