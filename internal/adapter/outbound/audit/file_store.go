// Package audit provides file-based persistence for the decision trail:
// JSON Lines output with daily rotation, retention cleanup, and an
// in-memory cache backing the recent-records endpoint.
package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/parcelgate/parcelgate/internal/domain/audit"
)

// filePattern matches trail filenames: decisions-YYYY-MM-DD.log
var filePattern = regexp.MustCompile(`^decisions-(\d{4}-\d{2}-\d{2})\.log$`)

// FileStoreConfig holds configuration for the file-based trail store.
type FileStoreConfig struct {
	// Dir is the directory where trail files are stored.
	Dir string
	// RetentionDays is the number of days to keep trail files (default 30).
	RetentionDays int
	// CacheSize is the number of recent records kept in memory (default 1000).
	CacheSize int
}

// FileStore implements audit.Store with daily file rotation, retention
// cleanup, and a recent-records cache.
type FileStore struct {
	dir           string
	retentionDays int
	current       *os.File
	currentDate   string
	cache         *recordCache
	mu            sync.Mutex
	logger        *slog.Logger
	cancel        context.CancelFunc
	closed        bool
}

// NewFileStore creates a file-based trail store. It creates the directory
// if missing, opens today's file, runs retention cleanup, warms the cache
// from the most recent file, and starts the hourly cleanup loop.
func NewFileStore(cfg FileStoreConfig, logger *slog.Logger) (*FileStore, error) {
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 30
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 1000
	}

	if err := os.MkdirAll(cfg.Dir, 0700); err != nil {
		return nil, fmt.Errorf("create trail directory: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &FileStore{
		dir:           cfg.Dir,
		retentionDays: cfg.RetentionDays,
		cache:         newRecordCache(cfg.CacheSize),
		logger:        logger,
		cancel:        cancel,
	}

	today := time.Now().UTC().Format("2006-01-02")
	if err := s.openForDate(today); err != nil {
		cancel()
		return nil, fmt.Errorf("open trail file: %w", err)
	}

	s.runCleanup()
	s.warmCache()

	go s.cleanupLoop(ctx)

	return s, nil
}

// Append writes records as JSON Lines to the current trail file,
// rotating to a new file when a record crosses a date boundary.
func (s *FileStore) Append(_ context.Context, records ...audit.Record) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		dateStr := rec.Timestamp.UTC().Format("2006-01-02")
		if dateStr != s.currentDate {
			if err := s.rotateLocked(dateStr); err != nil {
				return fmt.Errorf("trail rotation: %w", err)
			}
		}

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal trail record: %w", err)
		}

		if _, err := s.current.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("write trail record: %w", err)
		}

		s.cache.Add(rec)
	}

	return nil
}

// Recent returns the last n records from the cache, newest first.
func (s *FileStore) Recent(n int) []audit.Record {
	return s.cache.Recent(n)
}

// Flush syncs the current trail file to disk.
func (s *FileStore) Flush(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		return s.current.Sync()
	}
	return nil
}

// Close stops the cleanup loop and closes the current file.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	s.cancel()

	if s.current != nil {
		_ = s.current.Sync()
		err := s.current.Close()
		s.current = nil
		return err
	}

	return nil
}

// openForDate opens or creates the trail file for the given date.
func (s *FileStore) openForDate(dateStr string) error {
	path := filepath.Join(s.dir, fmt.Sprintf("decisions-%s.log", dateStr))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}

	s.current = f
	s.currentDate = dateStr
	return nil
}

// rotateLocked closes the current file and opens one for the new date.
// Must be called with s.mu held.
func (s *FileStore) rotateLocked(dateStr string) error {
	if s.current != nil {
		_ = s.current.Sync()
		_ = s.current.Close()
		s.current = nil
	}
	return s.openForDate(dateStr)
}

// runCleanup deletes trail files older than the retention period.
func (s *FileStore) runCleanup() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Error("trail cleanup: failed to read directory", "dir", s.dir, "error", err)
		return
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -s.retentionDays)
	deleted := 0

	for _, e := range entries {
		matches := filePattern.FindStringSubmatch(e.Name())
		if matches == nil {
			continue
		}

		fileDate, err := time.Parse("2006-01-02", matches[1])
		if err != nil {
			continue
		}

		if fileDate.Before(cutoff) {
			if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil {
				s.logger.Error("trail cleanup: failed to delete file",
					"file", e.Name(), "error", err)
			} else {
				deleted++
			}
		}
	}

	if deleted > 0 {
		s.logger.Info("trail cleanup completed", "deleted", deleted)
	}
}

// cleanupLoop runs retention cleanup every hour until the context is cancelled.
func (s *FileStore) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runCleanup()
		}
	}
}

// warmCache reads the most recent trail file and fills the cache so the
// recent-records endpoint survives restarts.
func (s *FileStore) warmCache() {
	name := s.mostRecentFile()
	if name == "" {
		return
	}

	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		s.logger.Error("trail cache: failed to open file", "file", name, "error", err)
		return
	}
	defer func() { _ = f.Close() }()

	var records []audit.Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		var rec audit.Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			s.logger.Warn("trail cache: skipping malformed line", "file", name, "error", err)
			continue
		}
		records = append(records, rec)
	}

	if err := scanner.Err(); err != nil {
		s.logger.Error("trail cache: error reading file", "file", name, "error", err)
	}

	start := 0
	if len(records) > s.cache.size {
		start = len(records) - s.cache.size
	}

	// Chronological order so the newest record ends up most recent.
	for _, rec := range records[start:] {
		s.cache.Add(rec)
	}
}

// mostRecentFile returns the name of the newest non-empty trail file,
// or an empty string when none exist.
func (s *FileStore) mostRecentFile() string {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return ""
	}

	var names []string
	for _, e := range entries {
		if !filePattern.MatchString(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.Size() == 0 {
			continue
		}
		names = append(names, e.Name())
	}

	if len(names) == 0 {
		return ""
	}

	sort.Strings(names)
	return names[len(names)-1]
}

// Compile-time interface verification.
var _ audit.Store = (*FileStore)(nil)

// recordCache is a ring buffer of recent records.
type recordCache struct {
	entries []audit.Record
	size    int
	head    int
	count   int
	mu      sync.RWMutex
}

func newRecordCache(size int) *recordCache {
	if size <= 0 {
		size = 1000
	}
	return &recordCache{
		entries: make([]audit.Record, size),
		size:    size,
	}
}

// Add inserts a record, overwriting the oldest entry when full.
func (c *recordCache) Add(rec audit.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[c.head] = rec
	c.head = (c.head + 1) % c.size
	if c.count < c.size {
		c.count++
	}
}

// Recent returns the last n entries, newest first.
func (c *recordCache) Recent(n int) []audit.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if n <= 0 || c.count == 0 {
		return nil
	}
	if n > c.count {
		n = c.count
	}

	result := make([]audit.Record, n)
	for i := 0; i < n; i++ {
		idx := (c.head - 1 - i + c.size) % c.size
		result[i] = c.entries[idx]
	}
	return result
}
