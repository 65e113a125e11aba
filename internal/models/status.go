package models

import "fmt"

// BatchStatus is the lifecycle state of an ImportBatch.
type BatchStatus string

const (
	BatchStatusUploaded  BatchStatus = "uploaded"
	BatchStatusMapped    BatchStatus = "mapped"
	BatchStatusValidated BatchStatus = "validated"
	BatchStatusApplied   BatchStatus = "applied"
	BatchStatusRejected  BatchStatus = "rejected"
)

// allowedTransitions lists every legal (from -> to) move. Self-loops on
// mapped/validated let staging and validation be re-run. validated -> mapped
// happens when a re-stage or re-validate finds errors, or the mapping changes.
// Only a validated batch can be applied.
var allowedTransitions = map[BatchStatus][]BatchStatus{
	BatchStatusUploaded:  {BatchStatusMapped},
	BatchStatusMapped:    {BatchStatusMapped, BatchStatusValidated, BatchStatusRejected},
	BatchStatusValidated: {BatchStatusMapped, BatchStatusValidated, BatchStatusApplied, BatchStatusRejected},
	BatchStatusApplied:   nil,
	BatchStatusRejected:  nil,
}

func ParseBatchStatus(s string) (BatchStatus, error) {
	st := BatchStatus(s)
	if _, ok := allowedTransitions[st]; !ok {
		return "", fmt.Errorf("unknown batch status %q", s)
	}
	return st, nil
}

func (s BatchStatus) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// Terminal reports whether no further transition is possible.
func (s BatchStatus) Terminal() bool {
	return s.Valid() && len(allowedTransitions[s]) == 0
}

func (s BatchStatus) CanTransitionTo(next BatchStatus) bool {
	for _, to := range allowedTransitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

// SourcesFor returns every status from which next is reachable. Repositories
// use it as the compare-and-swap guard of a status update.
func SourcesFor(next BatchStatus) []BatchStatus {
	var out []BatchStatus
	for _, from := range []BatchStatus{BatchStatusUploaded, BatchStatusMapped, BatchStatusValidated, BatchStatusApplied, BatchStatusRejected} {
		if from.CanTransitionTo(next) {
			out = append(out, from)
		}
	}
	return out
}

// SourceKind describes where an attendance file came from.
type SourceKind string

const (
	SourceExcel     SourceKind = "excel"
	SourceCSV       SourceKind = "csv"
	SourceBiometric SourceKind = "biometric"
)

func ParseSourceKind(s string) (SourceKind, error) {
	switch SourceKind(s) {
	case SourceExcel, SourceCSV, SourceBiometric:
		return SourceKind(s), nil
	case "":
		return SourceCSV, nil
	default:
		return "", fmt.Errorf("source must be excel|csv|biometric")
	}
}
