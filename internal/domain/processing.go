package domain

import (
	"fmt"
	"strings"
)

// ProcessingStatus is the per-item state tracked during a batch run.
type ProcessingStatus string

const (
	ProcessingPending    ProcessingStatus = "PENDING"
	ProcessingInProgress ProcessingStatus = "IN_PROGRESS"
	ProcessingCompleted  ProcessingStatus = "COMPLETED"
	ProcessingFailed     ProcessingStatus = "FAILED"
	ProcessingUnknown    ProcessingStatus = "UNKNOWN"
)

func (s ProcessingStatus) String() string { return string(s) }

func (s ProcessingStatus) IsValid() bool {
	switch s {
	case ProcessingPending, ProcessingInProgress, ProcessingCompleted, ProcessingFailed, ProcessingUnknown:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition happens within a run.
func (s ProcessingStatus) IsTerminal() bool {
	return s == ProcessingCompleted || s == ProcessingFailed
}

// Rank orders statuses along PENDING -> IN_PROGRESS -> COMPLETED|FAILED.
// UNKNOWN ranks lowest; both terminal statuses share the highest rank.
func (s ProcessingStatus) Rank() int {
	switch s {
	case ProcessingPending:
		return 1
	case ProcessingInProgress:
		return 2
	case ProcessingCompleted, ProcessingFailed:
		return 3
	default:
		return 0
	}
}

func ParseProcessingStatusFromString(s string) (ProcessingStatus, error) {
	st := ProcessingStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid processing status %q", ErrValidation, s)
	}
	return st, nil
}
