package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Entry is one rendered handler outcome.
type Entry struct {
	Time    time.Time `json:"time"`
	Handler string    `json:"handler"`
	Op      string    `json:"op,omitempty"`
	Input   []string  `json:"input"`
	Output  string    `json:"output"`
	Outcome string    `json:"outcome"`
}

// Log is the in-memory history of a session.
type Log struct {
	mu      sync.Mutex
	started time.Time
	label   string
	entries []Entry
	now     func() time.Time
}

func New() *Log {
	return &Log{started: time.Now(), now: time.Now}
}

// SetLabel names the session. A non-empty label becomes part of the saved
// file name, cleaned up to a single path element.
func (l *Log) SetLabel(label string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.label = strings.TrimSpace(label)
}

func (l *Log) Add(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e.Time.IsZero() {
		e.Time = l.now()
	}
	l.entries = append(l.entries, e)
}

// Entries returns a copy, oldest first.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

type file struct {
	Started time.Time `json:"started"`
	Saved   time.Time `json:"saved"`
	Label   string    `json:"label,omitempty"`
	Entries []Entry   `json:"entries"`
}

// Save writes the session to dir as calcdesk-[label-]<timestamp>.json and
// returns the path. The file only appears once fully written.
func (l *Log) Save(dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	l.mu.Lock()
	doc := file{Started: l.started, Saved: l.now(), Label: l.label, Entries: append([]Entry(nil), l.entries...)}
	l.mu.Unlock()
	if len(doc.Entries) == 0 {
		return "", errors.New("history is empty")
	}

	name := "calcdesk-" + doc.Saved.Format("20060102-150405.000")
	if doc.Label != "" {
		name = fmt.Sprintf("calcdesk-%s-%s", sanitizeName(doc.Label), doc.Saved.Format("20060102-150405.000"))
	}
	dst := filepath.Join(dir, name+".json")
	if err := writeJSON(dst, doc); err != nil {
		return "", err
	}
	return dst, nil
}

func writeJSON(dst string, v any) (err error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')

	part := dst + ".part"
	if err := os.WriteFile(part, b, 0o644); err != nil {
		_ = os.Remove(part)
		return err
	}
	if err := os.Rename(part, dst); err != nil {
		_ = os.Remove(part)
		return err
	}
	return nil
}
