// Package history persists run reports under a base directory so past
// runs can be listed and inspected.
package history

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"stepline/internal/report"
)

// Store keeps one JSON report per run under:
//
//	<baseDir>/.stepline/runs/<run-id>.json
type Store struct {
	baseDir string
}

func NewStore(baseDir string) (*Store, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, errors.New("baseDir is required")
	}
	return &Store{baseDir: baseDir}, nil
}

func (s *Store) runsDir() string {
	return filepath.Join(s.baseDir, ".stepline", "runs")
}

func (s *Store) runPath(runID string) string {
	return filepath.Join(s.runsDir(), runID+".json")
}

// Save persists the report for its run ID. Writes are atomic, so a
// crash mid-save never leaves a truncated record.
func (s *Store) Save(r report.Report) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("invalid report: %w", err)
	}
	return r.WriteFile(s.runPath(r.RunID))
}

// Load reads one run's report by ID.
func (s *Store) Load(runID string) (report.Report, error) {
	if strings.TrimSpace(runID) == "" {
		return report.Report{}, errors.New("runID is required")
	}
	return report.Read(s.runPath(runID))
}

// Entry is one stored run. A record that exists on disk but cannot be
// decoded is still listed, with Err set, so corruption is visible
// instead of silently hiding runs.
type Entry struct {
	RunID  string
	Report report.Report
	Err    error
}

// List returns all stored runs, newest first. Records that fail to
// decode sort last.
func (s *Store) List() ([]Entry, error) {
	files, err := os.ReadDir(s.runsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	entries := make([]Entry, 0, len(files))
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(f.Name(), ".json")
		e := Entry{RunID: id}
		e.Report, e.Err = report.Read(s.runPath(id))
		entries = append(entries, e)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if (a.Err == nil) != (b.Err == nil) {
			return a.Err == nil
		}
		if !a.Report.StartedAt.Equal(b.Report.StartedAt) {
			return a.Report.StartedAt.After(b.Report.StartedAt)
		}
		return a.RunID < b.RunID
	})
	return entries, nil
}
