package events

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/crewline/foreman/internal/lock"
)

const (
	// DefaultMaxJournalSize caps a journal file at 10MB before rotation.
	DefaultMaxJournalSize = 10 * 1024 * 1024
	// JournalFileExtension is the JSON-lines suffix journal files carry.
	JournalFileExtension = ".jsonl"
	// ArchiveDir is the directory rotated journal files move into, created
	// next to the live journal.
	ArchiveDir = "archive"
)

// ErrJournalLocked means another process holds the journal's writer lock.
var ErrJournalLocked = errors.New("journal locked by another process")

// Entry is one line of the decision journal.
type Entry struct {
	Timestamp  time.Time              `json:"timestamp"`
	EventType  string                 `json:"event_type"`
	Operation  string                 `json:"operation,omitempty"`
	Source     string                 `json:"source,omitempty"`
	DecisionID string                 `json:"decision_id,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Checksum   string                 `json:"checksum,omitempty"`
}

// Journal is the append-only JSONL record of served decisions: one line per
// event, synced on every append, rotated into ArchiveDir by size. A file
// lock enforces a single writer per journal path, so rotation cannot race
// an append from another foreman process.
type Journal struct {
	mu        sync.Mutex
	file      *os.File
	flock     *lock.FileLock
	size      int64
	maxSize   int64
	path      string
	checksums bool
	rotations int
}

// NewJournal opens or creates the journal at path, creating parent
// directories as needed. It returns ErrJournalLocked when another process
// already writes there. maxSize <= 0 selects DefaultMaxJournalSize.
func NewJournal(path string, maxSize int64) (*Journal, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxJournalSize
	}

	j := &Journal{path: path, maxSize: maxSize}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	fl, err := lock.Acquire(path + ".lock")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrJournalLocked, err)
	}
	j.flock = fl

	if err := j.open(); err != nil {
		j.flock.Release()
		return nil, err
	}
	return j, nil
}

func (j *Journal) open() error {
	file, err := os.OpenFile(j.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open journal file: %w", err)
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stat journal file: %w", err)
	}
	j.file = file
	j.size = stat.Size()
	return nil
}

// Record converts a bus event into a journal entry and appends it. A zero
// event timestamp is stamped with the current time.
func (j *Journal) Record(event Event) error {
	entry := Entry{
		Timestamp:  event.Timestamp,
		EventType:  string(event.Type),
		Operation:  event.Operation,
		Source:     event.Source,
		DecisionID: event.DecisionID,
		Details:    event.Data,
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	return j.Append(&entry)
}

// Append writes one entry and syncs it to disk, rotating first when the
// entry would push the file past its size cap.
func (j *Journal) Append(entry *Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.checksums {
		entry.Checksum = entryChecksum(*entry)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal journal entry: %w", err)
	}
	data = append(data, '\n')

	if j.size+int64(len(data)) > j.maxSize {
		if err := j.rotate(); err != nil {
			return fmt.Errorf("rotate journal: %w", err)
		}
	}

	// Single write call keeps each JSONL line intact
	n, err := j.file.Write(data)
	if err != nil {
		return fmt.Errorf("write journal entry: %w", err)
	}
	if err := j.file.Sync(); err != nil {
		return fmt.Errorf("sync journal: %w", err)
	}
	j.size += int64(n)
	return nil
}

// rotate moves the live file into ArchiveDir and starts a fresh one.
func (j *Journal) rotate() error {
	if err := j.file.Close(); err != nil {
		return fmt.Errorf("close journal file: %w", err)
	}

	archiveDir := filepath.Join(filepath.Dir(j.path), ArchiveDir)
	if err := os.MkdirAll(archiveDir, 0755); err != nil {
		return fmt.Errorf("create archive directory: %w", err)
	}

	j.rotations++
	target := filepath.Join(archiveDir, j.archiveName(time.Now()))
	if err := os.Rename(j.path, target); err != nil {
		return fmt.Errorf("archive journal file: %w", err)
	}

	return j.open()
}

// archiveName builds names like decisions.20260825_143000.1.jsonl. The
// rotation counter keeps same-second rotations distinct.
func (j *Journal) archiveName(now time.Time) string {
	base := strings.TrimSuffix(filepath.Base(j.path), JournalFileExtension)
	return fmt.Sprintf("%s.%s.%d%s", base, now.Format("20060102_150405"), j.rotations, JournalFileExtension)
}

// entryChecksum hashes the entry's JSON form with the checksum field blank,
// which is also how verification recomputes it.
func entryChecksum(entry Entry) string {
	entry.Checksum = ""
	data, err := json.Marshal(entry)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%x", djb2(data))
}

func djb2(data []byte) uint64 {
	var hash uint64 = 5381
	for _, b := range data {
		hash = hash<<5 + hash + uint64(b)
	}
	return hash
}

// EnableChecksum turns per-entry checksums on or off for later appends.
func (j *Journal) EnableChecksum(enable bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.checksums = enable
}

// VerifyJournal re-reads a journal file and reports how many entries it
// holds and how many pass their checksum. Entries written without a
// checksum count as valid; lines that do not parse are skipped.
func VerifyJournal(path string) (total, valid int, err error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("open journal file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		total++
		if entry.Checksum == "" || entry.Checksum == entryChecksum(entry) {
			valid++
		}
	}
	if err := scanner.Err(); err != nil {
		return total, valid, fmt.Errorf("read journal file: %w", err)
	}
	return total, valid, nil
}

// Close syncs and closes the journal, then releases the writer lock.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	var closeErr error
	if j.file != nil {
		if err := j.file.Sync(); err != nil {
			closeErr = err
		} else {
			closeErr = j.file.Close()
		}
		j.file = nil
	}
	if err := j.flock.Release(); err != nil && closeErr == nil {
		closeErr = err
	}
	return closeErr
}

// Path returns the live journal file path.
func (j *Journal) Path() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.path
}

// Size returns the live journal file's current size in bytes.
func (j *Journal) Size() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.size
}
