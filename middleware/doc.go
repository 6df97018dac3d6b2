// Package middleware holds the Fiber middleware the profiler host runs in
// front of legacy pages and profiler endpoints.
package middleware
