// Package storage archives raw logs so a run can be replayed without a node.
package storage

import "vaultScope/internal/model"

// Storage defines a sink for raw log records and the logs that failed to decode.
type Storage interface {
	PutLogBatch(logs []model.LogRecord) error
	PutDecodeErrors(errs []model.DecodeError) error
}

// Discard drops every batch. It stands in when no archive is configured.
type Discard struct{}

func (Discard) PutLogBatch([]model.LogRecord) error { return nil }

func (Discard) PutDecodeErrors([]model.DecodeError) error { return nil }
