package audit

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func tempLog(t *testing.T) *Log {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func orderEntry(agentID, check, reason string) Entry {
	return Entry{
		AgentID:       agentID,
		Action:        "place_order",
		Params:        Params{Symbol: "AAPL", Qty: 10, Side: "buy", OrderType: "market", AssetType: "equity"},
		MandateID:     "mnd_test0001",
		MandateHash:   "sha256:abc",
		MandateCheck:  check,
		MandateReason: reason,
	}
}

func TestAppend_BuildsChainFromGenesis(t *testing.T) {
	l := tempLog(t)

	e1, err := l.Append(orderEntry("agt_1", CheckPass, ""))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if e1.PrevHash != GenesisHash {
		t.Errorf("first entry prev_hash = %q, want genesis", e1.PrevHash)
	}
	if !strings.HasPrefix(e1.EventID, "evt_") {
		t.Errorf("event ID = %q, want evt_ prefix", e1.EventID)
	}
	if !strings.HasPrefix(e1.EntryHash, "sha256:") {
		t.Errorf("entry hash = %q", e1.EntryHash)
	}

	e2, err := l.Append(orderEntry("agt_1", CheckFail, "symbol blocked: GME"))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if e2.PrevHash != e1.EntryHash {
		t.Error("second entry must link to the first entry's hash")
	}
}

func TestVerify_ValidAfterAppends(t *testing.T) {
	l := tempLog(t)
	for i := 0; i < 25; i++ {
		check := CheckPass
		if i%3 == 0 {
			check = CheckFail
		}
		if _, err := l.Append(orderEntry("agt_1", check, "")); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	result, err := Verify(l.Path())
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !result.Valid {
		t.Fatalf("chain should verify: %+v", result)
	}
	if result.EntriesChecked != 25 {
		t.Errorf("entries checked = %d, want 25", result.EntriesChecked)
	}
	if result.FirstBrokenIndex != -1 {
		t.Errorf("first broken index = %d, want -1", result.FirstBrokenIndex)
	}
}

func TestVerify_DetectsFlippedCheckAtIndex(t *testing.T) {
	l := tempLog(t)
	for i := 0; i < 10; i++ {
		check := CheckPass
		if i == 6 {
			check = CheckFail
		}
		if _, err := l.Append(orderEntry("agt_1", check, "")); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := l.ReadEntries(0)
	if err != nil {
		t.Fatal(err)
	}

	// Flip the denied entry's outcome to PASS, as an attacker hiding a
	// violation would.
	entries[6].MandateCheck = CheckPass

	result := VerifyEntries(entries)
	if result.Valid {
		t.Fatal("tampered chain must not verify")
	}
	if result.FirstBrokenIndex != 6 {
		t.Errorf("first broken index = %d, want 6", result.FirstBrokenIndex)
	}
	if result.BrokenEventID != entries[6].EventID {
		t.Errorf("broken event = %q, want %q", result.BrokenEventID, entries[6].EventID)
	}
}

func TestVerify_DetectsDeletedEntry(t *testing.T) {
	l := tempLog(t)
	for i := 0; i < 5; i++ {
		if _, err := l.Append(orderEntry("agt_1", CheckPass, "")); err != nil {
			t.Fatal(err)
		}
	}
	entries, _ := l.ReadEntries(0)

	// Remove the middle entry: the successor's prev_hash no longer links.
	tampered := append(append([]Entry{}, entries[:2]...), entries[3:]...)
	result := VerifyEntries(tampered)
	if result.Valid {
		t.Fatal("chain with a deleted entry must not verify")
	}
	if result.FirstBrokenIndex != 2 {
		t.Errorf("first broken index = %d, want 2", result.FirstBrokenIndex)
	}
}

func TestOpen_RecoversChainTipAcrossRestarts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")

	l1, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	last, err := l1.Append(orderEntry("agt_1", CheckPass, ""))
	if err != nil {
		t.Fatal(err)
	}
	l1.Close()

	l2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer l2.Close()

	if l2.LastHash() != last.EntryHash {
		t.Error("reopened log must resume from the persisted tip")
	}
	next, err := l2.Append(orderEntry("agt_1", CheckPass, ""))
	if err != nil {
		t.Fatal(err)
	}
	if next.PrevHash != last.EntryHash {
		t.Error("entry appended after reopen must link to the old tip")
	}

	result, err := Verify(path)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Valid {
		t.Fatalf("chain spanning a restart should verify: %+v", result)
	}
}

func TestDailyStats_CountsOnlyConfirmedExecutions(t *testing.T) {
	l := tempLog(t)
	now := time.Now().UTC()

	// Denied order: never counted.
	if _, err := l.Append(orderEntry("agt_1", CheckFail, "exceeds max order size")); err != nil {
		t.Fatal(err)
	}
	// Allowed decision entry without a result: not yet executed.
	if _, err := l.Append(orderEntry("agt_1", CheckPass, "")); err != nil {
		t.Fatal(err)
	}
	// Confirmed execution: counted.
	filled := orderEntry("agt_1", CheckPass, "")
	filled.Result = &Result{Status: "filled", OrderID: "paper_1", FilledPrice: 150, FilledQty: 10}
	if _, err := l.Append(filled); err != nil {
		t.Fatal(err)
	}
	// Another agent's fill: not counted for agt_1.
	other := orderEntry("agt_2", CheckPass, "")
	other.Result = &Result{Status: "filled", FilledPrice: 50, FilledQty: 2}
	if _, err := l.Append(other); err != nil {
		t.Fatal(err)
	}

	notional, trades, err := l.DailyStats("agt_1", now)
	if err != nil {
		t.Fatal(err)
	}
	if trades != 1 {
		t.Errorf("trades = %d, want 1", trades)
	}
	if notional != 1500 {
		t.Errorf("notional = %v, want 1500", notional)
	}
}

func TestReadEntries_LastN(t *testing.T) {
	l := tempLog(t)
	for i := 0; i < 8; i++ {
		if _, err := l.Append(orderEntry("agt_1", CheckPass, "")); err != nil {
			t.Fatal(err)
		}
	}
	entries, err := l.ReadEntries(3)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("len = %d, want 3", len(entries))
	}
}

func TestVerify_MissingFileIsNotAnError(t *testing.T) {
	result, err := Verify(filepath.Join(t.TempDir(), "missing.jsonl"))
	if err != nil {
		t.Fatalf("missing log should verify as an empty chain: %v", err)
	}
	if !result.Valid || result.EntriesChecked != 0 {
		t.Errorf("result = %+v", result)
	}
}
