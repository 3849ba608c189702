// Package sinks implements progress consumers: a carriage-return terminal
// line, structured zap logging and Prometheus collectors.
package sinks
