package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/penwyp/ivt-split/internal/util"
)

// DefaultLedgerName is the ledger file created inside a watched directory
const DefaultLedgerName = ".ivt-split-processed.json"

type MissReason int

const (
	MissReasonNone MissReason = iota
	MissReasonError
	MissReasonSize
	MissReasonFingerprint
	MissReasonNotFound
)

func (r MissReason) String() string {
	switch r {
	case MissReasonNone:
		return "none"
	case MissReasonError:
		return "error"
	case MissReasonSize:
		return "size"
	case MissReasonFingerprint:
		return "fingerprint"
	case MissReasonNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Entry records one successfully processed report
type Entry struct {
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	Inode        uint64    `json:"inode"`
	Fingerprint  string    `json:"fingerprint"`
	ProcessedAt  time.Time `json:"processed_at"`
	RunID        string    `json:"run_id"`
	FilesCreated int       `json:"files_created"`
}

type LookupResult struct {
	Entry      *Entry
	Processed  bool
	MissReason MissReason
}

// Ledger remembers which reports have already been split so a watcher
// does not redo them after a restart.
type Ledger interface {
	Lookup(reportPath string) LookupResult
	Record(reportPath string, runID string, filesCreated int) error
	Entries() []Entry
	Clear() error
}

type ledgerFile struct {
	UpdatedAt time.Time         `json:"updated_at"`
	Reports   map[string]*Entry `json:"reports"`
}

// FileLedger keeps entries in memory and persists them as one JSON file
type FileLedger struct {
	path    string
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewFileLedger opens the ledger at path, loading any existing entries.
// A missing file starts an empty ledger.
func NewFileLedger(path string) (*FileLedger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	l := &FileLedger{
		path:    path,
		entries: make(map[string]*Entry),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			util.LogDebugf("No processed ledger at %s, starting fresh", path)
			return l, nil
		}
		return nil, fmt.Errorf("failed to read ledger %s: %w", path, err)
	}

	var file ledgerFile
	if err := sonic.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ledger %s: %w", path, err)
	}
	for key, entry := range file.Reports {
		if entry != nil {
			l.entries[key] = entry
		}
	}

	util.LogDebugf("Loaded %d processed reports from %s", len(l.entries), path)
	return l, nil
}

func ledgerKey(reportPath string) string {
	if abs, err := filepath.Abs(reportPath); err == nil {
		return abs
	}
	return filepath.Clean(reportPath)
}

// Lookup reports whether the report's current content was already processed
func (l *FileLedger) Lookup(reportPath string) LookupResult {
	l.mu.RLock()
	entry, exists := l.entries[ledgerKey(reportPath)]
	l.mu.RUnlock()

	if !exists {
		return LookupResult{MissReason: MissReasonNotFound}
	}

	info, err := util.GetFileInfo(reportPath)
	if err != nil {
		util.LogDebugf("Ledger lookup failed for %s: unable to get file info: %v", reportPath, err)
		return LookupResult{Entry: entry, MissReason: MissReasonError}
	}

	// Step 1: size is the cheap check
	if info.Size != entry.Size {
		util.LogDebugf("Report %s changed: size %d -> %d", reportPath, entry.Size, info.Size)
		return LookupResult{Entry: entry, MissReason: MissReasonSize}
	}

	// Step 2: content fingerprint
	fingerprint, err := util.CalculateFileFingerprint(reportPath)
	if err != nil {
		util.LogDebugf("Ledger lookup failed for %s: unable to calculate fingerprint: %v", reportPath, err)
		return LookupResult{Entry: entry, MissReason: MissReasonError}
	}
	if fingerprint != entry.Fingerprint {
		util.LogDebugf("Report %s changed: fingerprint %s -> %s", reportPath, entry.Fingerprint, fingerprint)
		return LookupResult{Entry: entry, MissReason: MissReasonFingerprint}
	}

	return LookupResult{Entry: entry, Processed: true, MissReason: MissReasonNone}
}

// Record stores the report's current fingerprint and saves the ledger
func (l *FileLedger) Record(reportPath string, runID string, filesCreated int) error {
	info, err := util.GetFileInfo(reportPath)
	if err != nil {
		return err
	}
	fingerprint, err := util.CalculateFileFingerprint(reportPath)
	if err != nil {
		return err
	}

	key := ledgerKey(reportPath)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries[key] = &Entry{
		Path:         key,
		Size:         info.Size,
		Inode:        info.Inode,
		Fingerprint:  fingerprint,
		ProcessedAt:  time.Now(),
		RunID:        runID,
		FilesCreated: filesCreated,
	}
	return l.save()
}

// Entries returns a copy of all entries sorted by path
func (l *FileLedger) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entries := make([]Entry, 0, len(l.entries))
	for _, entry := range l.entries {
		entries = append(entries, *entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Path < entries[j].Path
	})
	return entries
}

// Clear forgets every entry and removes the ledger file
func (l *FileLedger) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = make(map[string]*Entry)
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove ledger %s: %w", l.path, err)
	}
	return nil
}

// save must be called with the write lock held
func (l *FileLedger) save() error {
	data, err := sonic.MarshalIndent(ledgerFile{
		UpdatedAt: time.Now(),
		Reports:   l.entries,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ledger: %w", err)
	}

	// Write to temporary file first
	tmpFile := l.path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write ledger file: %w", err)
	}

	// Rename to final location (atomic operation)
	if err := os.Rename(tmpFile, l.path); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to rename ledger file: %w", err)
	}

	util.LogDebugf("Saved %d processed reports to %s", len(l.entries), l.path)
	return nil
}
