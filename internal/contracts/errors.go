package contracts

import (
	"errors"
	"fmt"
)

var (
	// ErrSnapshotNotFound is returned when no snapshot exists at or before as-of
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrSnapshotExists is returned when committing a key that was already committed
	ErrSnapshotExists = errors.New("snapshot already committed")

	// ErrInvalidSnapshot is returned when rows cannot form a snapshot
	ErrInvalidSnapshot = errors.New("invalid snapshot")

	// ErrSourceRejected is returned when too many rows of a refresh are malformed
	ErrSourceRejected = errors.New("source refresh rejected")

	// ErrUnknownSourceType is returned for a source type outside the closed set
	ErrUnknownSourceType = errors.New("unknown source type")
)

// MalformedSourceError describes one unusable row. Collected, never thrown.
type MalformedSourceError struct {
	Source SourceType
	Name   string // file or document name
	Row    int    // 1-based data row
	Field  string
	Reason string
}

func (e *MalformedSourceError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s %s row %d: %s: %s", e.Source, e.Name, e.Row, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s row %d: %s: %s", e.Source, e.Row, e.Field, e.Reason)
}

// SnapshotMismatchError is returned when a diff is asked to compare snapshots
// of different sources or investors. Caller bug; aborts that investor's run.
type SnapshotMismatchError struct {
	Previous SnapshotKey
	Current  SnapshotKey
}

func (e *SnapshotMismatchError) Error() string {
	return fmt.Sprintf("snapshot mismatch: previous %s vs current %s", e.Previous, e.Current)
}
