package audit

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Property: any legitimately appended sequence of entries verifies, and
// mutating any single persisted field of any entry breaks verification at
// exactly that entry's index.
func TestProperty_TamperDetectedAtMutatedIndex(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("single-field mutation breaks the chain at its index", prop.ForAll(
		func(n int, target int, field int) bool {
			path := filepath.Join(t.TempDir(), "audit.jsonl")
			l, err := Open(path)
			if err != nil {
				return false
			}
			defer l.Close()

			for i := 0; i < n; i++ {
				check := CheckPass
				if i%2 == 1 {
					check = CheckFail
				}
				if _, err := l.Append(orderEntry("agt_1", check, "r")); err != nil {
					return false
				}
			}

			entries, err := l.ReadEntries(0)
			if err != nil {
				return false
			}
			if clean := VerifyEntries(entries); !clean.Valid {
				return false
			}

			idx := target % n
			switch field % 5 {
			case 0:
				entries[idx].AgentID = "agt_evil"
			case 1:
				entries[idx].Params.Qty += 1
			case 2:
				entries[idx].MandateCheck = CheckPass
				entries[idx].MandateReason = ""
			case 3:
				entries[idx].Action = "cancel_order"
			case 4:
				entries[idx].Timestamp = entries[idx].Timestamp.Add(time.Minute)
			}

			result := VerifyEntries(entries)
			return !result.Valid && result.FirstBrokenIndex == idx
		},
		gen.IntRange(1, 20),
		gen.IntRange(0, 1000),
		gen.IntRange(0, 1000),
	))

	properties.TestingRun(t)
}
