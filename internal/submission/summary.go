package submission

import "fmt"

// DuplicateReport names an order the portal already had and the batch it was found in.
type DuplicateReport struct {
	ExternalID string `json:"external_id"`
	Batch      int    `json:"batch"`
}

// SyncSummary is the outcome of one run for one tenant.
type SyncSummary struct {
	DatabaseID       string            `json:"database_id"`
	Posted           int               `json:"posted"`
	Errors           int               `json:"errors"`
	Duplicates       int               `json:"duplicates"`
	Skipped          int               `json:"skipped"`
	Invalid          int               `json:"invalid"`
	Batches          int               `json:"batches"`
	LedgerFailures   int               `json:"ledger_failures"`
	DuplicateDetails []DuplicateReport `json:"duplicate_details"`
}

func (s SyncSummary) String() string {
	return fmt.Sprintf("posted=%d errors=%d duplicates=%d skipped=%d invalid=%d batches=%d ledger_failures=%d",
		s.Posted, s.Errors, s.Duplicates, s.Skipped, s.Invalid, s.Batches, s.LedgerFailures)
}

// Add folds other into s, used when a tenant is processed in several runs.
func (s *SyncSummary) Add(other SyncSummary) {
	s.Posted += other.Posted
	s.Errors += other.Errors
	s.Duplicates += other.Duplicates
	s.Skipped += other.Skipped
	s.Invalid += other.Invalid
	s.Batches += other.Batches
	s.LedgerFailures += other.LedgerFailures
	s.DuplicateDetails = append(s.DuplicateDetails, other.DuplicateDetails...)
}
