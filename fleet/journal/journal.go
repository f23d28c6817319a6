package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Entry is one scheduling decision, recorded as a JSON line.
type Entry struct {
	Seq      int64   `json:"seq"`
	Time     float64 `json:"time"` // simulation-relative seconds
	Event    string  `json:"event"`
	TaskID   int     `json:"task_id"`
	WorkerID int     `json:"worker_id,omitempty"`
}

// Event names written by the orchestrator.
const (
	EventAdmitted   = "admitted"
	EventDispatched = "dispatched"
	EventMigrated   = "migrated"
	EventCompleted  = "completed"
)

// Journal is an append-only log of a run's scheduling decisions. It exists
// for post-run inspection: given the same seed and policy, two runs should
// produce the same decision sequence.
type Journal struct {
	mu      sync.Mutex
	file    *os.File
	enc     *json.Encoder
	nextSeq int64
}

// Open creates (or truncates) the journal file at path.
func Open(path string) (*Journal, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	return &Journal{file: f, enc: json.NewEncoder(f)}, nil
}

// Append assigns the next sequence number to e and writes it. Safe for
// concurrent use, though the orchestrator is the only writer in practice.
func (j *Journal) Append(e Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	e.Seq = j.nextSeq
	j.nextSeq++
	if err := j.enc.Encode(e); err != nil {
		return fmt.Errorf("appending journal entry: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Close()
}

// Read loads every entry from a journal file, in write order.
func Read(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	defer f.Close()

	var entries []Entry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("parsing journal line %d: %w", len(entries), err)
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading journal: %w", err)
	}
	return entries, nil
}
