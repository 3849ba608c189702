// Package progress carries harvest progress from the workers to pluggable
// sinks. Workers emit events without blocking; a background goroutine batches
// them and fans each batch out to the terminal, log and Prometheus sinks.
package progress
