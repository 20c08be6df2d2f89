// Package task provides the background processing machinery: a
// buffered queue with worker goroutines for fire-and-forget provider
// submissions, and the periodic reconciliation loop that polls the
// providers for status changes.
package task
