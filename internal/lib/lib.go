// Package lib holds infrastructure that does not belong to a single layer,
// such as the Redis-backed background job queue.
package lib
