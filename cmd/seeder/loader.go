package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ammerola/medboard/internal/core/domain"
	"github.com/ammerola/medboard/internal/core/ports"
	"github.com/ammerola/medboard/internal/workers"
)

// SeederState tracks which documents were already loaded so reruns only
// send new files.
type SeederState struct {
	Loaded     map[string]time.Time `json:"loaded"`
	LastUpdate time.Time            `json:"last_update"`
}

// Summary reports the outcome of one run
type Summary struct {
	Loaded  []string
	Skipped []string
	Failed  map[string]string
	Pages   int
}

// Loader sends a directory of PDFs to the knowledge base
type Loader struct {
	backend ports.BackendClient
	logger  *slog.Logger
	dryRun  bool
	force   bool
	now     func() time.Time
}

// NewLoader creates a loader backed by backend
func NewLoader(backend ports.BackendClient, dryRun, force bool, logger *slog.Logger) *Loader {
	return &Loader{
		backend: backend,
		logger:  logger.With(slog.String("component", "seeder")),
		dryRun:  dryRun,
		force:   force,
		now:     time.Now,
	}
}

// LoadState reads the state file. A missing file yields an empty state.
func LoadState(path string) (*SeederState, error) {
	state := &SeederState{Loaded: map[string]time.Time{}}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return state, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("failed to parse state file %s: %w", path, err)
	}
	if state.Loaded == nil {
		state.Loaded = map[string]time.Time{}
	}
	return state, nil
}

// Save writes the state file
func (s *SeederState) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	return nil
}

// Run uploads every PDF in dir not yet recorded in state. Failures are
// collected per file and do not stop the run.
func (l *Loader) Run(ctx context.Context, dir string, state *SeederState) (*Summary, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*"))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	sort.Strings(files)

	summary := &Summary{Failed: map[string]string{}}
	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		name := filepath.Base(path)
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			continue
		}
		if err := domain.ValidateDocumentName(name); err != nil {
			l.logger.Debug("skipping non-document file", slog.String("file", name))
			continue
		}

		fmt.Printf("PROGRESS: Processing %d/%d: %s\n", i+1, len(files), name)

		if _, done := state.Loaded[name]; done && !l.force {
			l.logger.Info("skipping already loaded document", slog.String("file", name))
			summary.Skipped = append(summary.Skipped, name)
			continue
		}

		pages, err := workers.CountPages(path)
		if err != nil {
			summary.Failed[name] = err.Error()
			l.logger.Warn("invalid document", slog.String("file", name), slog.String("error", err.Error()))
			continue
		}

		if !l.dryRun {
			if err := l.upload(ctx, path, name); err != nil {
				summary.Failed[name] = err.Error()
				l.logger.Error("failed to load document", slog.String("file", name), slog.String("error", err.Error()))
				continue
			}
			state.Loaded[name] = l.now()
		}

		summary.Loaded = append(summary.Loaded, name)
		summary.Pages += pages
		l.logger.Info("document loaded",
			slog.String("file", name),
			slog.Int("pages", pages),
			slog.Bool("dry_run", l.dryRun))
	}

	if !l.dryRun {
		state.LastUpdate = l.now()
	}
	return summary, nil
}

// Reset clears the knowledge base and forgets previously loaded files
func (l *Loader) Reset(ctx context.Context, state *SeederState) error {
	if l.dryRun {
		l.logger.Info("dry run: knowledge base left untouched")
		return nil
	}
	if err := l.backend.ResetDocuments(ctx); err != nil {
		return fmt.Errorf("failed to reset knowledge base: %w", err)
	}
	state.Loaded = map[string]time.Time{}
	return nil
}

func (l *Loader) upload(ctx context.Context, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer f.Close()
	return l.backend.UploadDocument(ctx, domain.SecureFilename(name), f)
}

// String renders the end of run report
func (s *Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Loaded:  %d documents (%d pages)\n", len(s.Loaded), s.Pages)
	fmt.Fprintf(&b, "Skipped: %d\n", len(s.Skipped))
	fmt.Fprintf(&b, "Failed:  %d\n", len(s.Failed))
	names := make([]string, 0, len(s.Failed))
	for name := range s.Failed {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "  - %s: %s\n", name, s.Failed[name])
	}
	return b.String()
}
