// Package service holds the business operations of the service: drawing
// items, storing results and querying the recent unboxes.
//
// Services return plain Go errors; handlers decide how they map to HTTP.
package service
