// Package audit provides the append-only, hash-chained record of every
// evaluated agent action. Entries are stored as newline-delimited JSON in
// append order; the on-disk order is the chain order.
package audit

import (
	"bufio"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jcgs2503/vestbridge/internal/errors"
)

// GenesisHash is the prev_hash of the first entry in every log.
const GenesisHash = "sha256:0000000000000000000000000000000000000000000000000000000000000000"

// Mandate check outcomes recorded in entries.
const (
	CheckPass = "PASS"
	CheckFail = "FAIL"
)

// Params is the snapshot of an action's parameters. All fields are scalars
// in a fixed struct so json.Marshal field order is deterministic, which the
// hash chain depends on.
type Params struct {
	Symbol     string  `json:"symbol,omitempty"`
	Qty        float64 `json:"qty,omitempty"`
	Side       string  `json:"side,omitempty"`
	OrderType  string  `json:"order_type,omitempty"`
	LimitPrice float64 `json:"limit_price,omitempty"`
	AssetType  string  `json:"asset_type,omitempty"`
	OrderID    string  `json:"order_id,omitempty"`
}

// Result records the broker outcome of an allowed action.
type Result struct {
	Status      string  `json:"status,omitempty"`
	OrderID     string  `json:"order_id,omitempty"`
	FilledPrice float64 `json:"filled_price,omitempty"`
	FilledQty   float64 `json:"filled_qty,omitempty"`
	Message     string  `json:"message,omitempty"`
	Error       string  `json:"error,omitempty"`
}

// Entry is one line of the audit log. Entries are never mutated or deleted
// after being written; EntryHash covers every field including PrevHash.
type Entry struct {
	EventID       string    `json:"event_id"`
	Timestamp     time.Time `json:"timestamp"`
	AgentID       string    `json:"agent_id"`
	Action        string    `json:"action"`
	Params        Params    `json:"params"`
	MandateID     string    `json:"mandate_id,omitempty"`
	MandateHash   string    `json:"mandate_hash,omitempty"`
	MandateCheck  string    `json:"mandate_check,omitempty"`
	MandateReason string    `json:"mandate_reason,omitempty"`
	Result        *Result   `json:"result,omitempty"`
	PrevHash      string    `json:"prev_hash"`
	EntryHash     string    `json:"entry_hash"`
}

// computeHash returns the sha256 digest of the entry's canonical
// serialization with EntryHash cleared.
func computeHash(e Entry) (string, error) {
	e.EntryHash = ""
	data, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("sha256:%x", sha256.Sum256(data)), nil
}

// Log is an append-only hash-chained audit log backed by a JSONL file.
// Append is globally serialized: each entry's prev_hash depends on a strict
// total ordering of all entries across all agents.
type Log struct {
	path string

	mu       sync.Mutex
	file     *os.File
	lastHash string
	count    int
}

// Open opens (or creates) an audit log and recovers the chain tip by
// scanning the existing file.
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, errors.NewStorageError("mkdir", path, err)
	}

	l := &Log{path: path, lastHash: GenesisHash}

	entries, err := readAll(path)
	if err != nil {
		return nil, err
	}
	l.count = len(entries)
	if len(entries) > 0 {
		l.lastHash = entries[len(entries)-1].EntryHash
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, errors.NewStorageError("open", path, err)
	}
	l.file = file
	return l, nil
}

// Path returns the log file path.
func (l *Log) Path() string {
	return l.path
}

// Append fills in the entry's chain fields, persists it, and returns the
// committed entry. A persistence failure leaves the chain tip unchanged and
// returns a StorageError: the triggering action is not yet decided and must
// not be forwarded to a broker.
func (l *Log) Append(e Entry) (*Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e.EventID == "" {
		e.EventID = fmt.Sprintf("evt_%s", strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	e.PrevHash = l.lastHash

	hash, err := computeHash(e)
	if err != nil {
		return nil, errors.NewStorageError("serialize", l.path, err)
	}
	e.EntryHash = hash

	data, err := json.Marshal(e)
	if err != nil {
		return nil, errors.NewStorageError("serialize", l.path, err)
	}
	if _, err := l.file.Write(append(data, '\n')); err != nil {
		return nil, errors.NewStorageError("append", l.path, err)
	}
	if err := l.file.Sync(); err != nil {
		return nil, errors.NewStorageError("sync", l.path, err)
	}

	l.lastHash = e.EntryHash
	l.count++
	return &e, nil
}

// Len returns the number of committed entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// LastHash returns the current chain tip.
func (l *Log) LastHash() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastHash
}

// ReadEntries returns entries in append order. If lastN > 0 only the most
// recent lastN entries are returned.
func (l *Log) ReadEntries(lastN int) ([]Entry, error) {
	entries, err := readAll(l.path)
	if err != nil {
		return nil, err
	}
	if lastN > 0 && len(entries) > lastN {
		entries = entries[len(entries)-lastN:]
	}
	return entries, nil
}

// DailyStats replays the log and returns the total confirmed order notional
// and trade count for an agent on the given UTC day. Denied orders are
// never counted.
func (l *Log) DailyStats(agentID string, day time.Time) (float64, int, error) {
	entries, err := readAll(l.path)
	if err != nil {
		return 0, 0, err
	}

	y, m, d := day.UTC().Date()
	var notional float64
	var trades int
	for _, e := range entries {
		if e.AgentID != agentID || e.Action != "place_order" || e.MandateCheck != CheckPass {
			continue
		}
		ey, em, ed := e.Timestamp.UTC().Date()
		if ey != y || em != m || ed != d {
			continue
		}
		if e.Result != nil && e.Result.FilledPrice > 0 {
			notional += e.Result.FilledPrice * e.Params.Qty
			trades++
		}
	}
	return notional, trades, nil
}

// Close closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// readAll parses every entry in the file, in on-disk order.
func readAll(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.NewStorageError("read", path, err)
	}
	defer file.Close()

	var entries []Entry
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			return nil, errors.NewStorageError("parse", path, err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.NewStorageError("scan", path, err)
	}
	return entries, nil
}
