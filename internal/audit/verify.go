package audit

import (
	"time"
)

// VerificationResult is the outcome of a full chain scan.
type VerificationResult struct {
	Valid            bool      `json:"valid"`
	EntriesChecked   int       `json:"entries_checked"`
	FirstBrokenIndex int       `json:"first_broken_index"` // -1 when valid
	BrokenEventID    string    `json:"broken_event_id,omitempty"`
	BrokenTimestamp  time.Time `json:"broken_timestamp,omitempty"`
	Message          string    `json:"message,omitempty"`
}

func broken(index, checked int, e Entry, message string) VerificationResult {
	return VerificationResult{
		Valid:            false,
		EntriesChecked:   checked,
		FirstBrokenIndex: index,
		BrokenEventID:    e.EventID,
		BrokenTimestamp:  e.Timestamp,
		Message:          message,
	}
}

// Verify recomputes every entry's hash and checks the prev_hash linkage
// from genesis through the last entry. It is a pure, read-only scan: a
// broken chain is reported, never repaired.
func Verify(path string) (VerificationResult, error) {
	entries, err := readAll(path)
	if err != nil {
		return VerificationResult{}, err
	}
	return verifyEntries(entries), nil
}

// VerifyEntries checks an in-memory chain. Consumers of the export format
// can rely on in-memory order being identical to on-disk order.
func VerifyEntries(entries []Entry) VerificationResult {
	return verifyEntries(entries)
}

func verifyEntries(entries []Entry) VerificationResult {
	prevHash := GenesisHash

	for i, e := range entries {
		if e.PrevHash != prevHash {
			return broken(i, i+1, e, "prev_hash does not match the previous entry's hash")
		}
		computed, err := computeHash(e)
		if err != nil {
			return broken(i, i+1, e, "entry could not be canonically serialized")
		}
		if e.EntryHash != computed {
			return broken(i, i+1, e, "entry_hash does not match entry contents")
		}
		prevHash = e.EntryHash
	}

	return VerificationResult{
		Valid:            true,
		EntriesChecked:   len(entries),
		FirstBrokenIndex: -1,
	}
}
