// Package quote defines the record, summary, error and collaborator types
// shared by the harvest pipeline.
package quote
