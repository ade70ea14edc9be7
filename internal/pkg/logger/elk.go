// internal/pkg/logger/elk.go
package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"
)

const (
	defaultELKBatchSize     = 100
	defaultELKFlushInterval = 5 * time.Second
	defaultELKIndex         = "medboard-logs"
)

// ELKConfig holds configuration for shipping logs to Elasticsearch
type ELKConfig struct {
	URL           string
	Index         string
	Username      string
	Password      string
	BatchSize     int
	FlushInterval time.Duration
}

// elkEntry is one document in the log index
type elkEntry struct {
	Timestamp time.Time      `json:"@timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// ELKSink buffers log entries and sends them to the Elasticsearch bulk API
// when a batch fills up or the flush interval elapses.
type ELKSink struct {
	client *http.Client
	config ELKConfig

	mu      sync.Mutex
	buffer  []elkEntry
	dropped int

	kick      chan struct{}
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	errOut    io.Writer
}

// NewELKSink creates a sink and starts its background flusher
func NewELKSink(cfg ELKConfig) *ELKSink {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultELKBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = defaultELKFlushInterval
	}
	if cfg.Index == "" {
		cfg.Index = defaultELKIndex
	}

	s := &ELKSink{
		client: &http.Client{Timeout: 10 * time.Second},
		config: cfg,
		buffer: make([]elkEntry, 0, cfg.BatchSize),
		kick:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		errOut: os.Stderr,
	}
	go s.run()
	return s
}

func (s *ELKSink) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
		case <-s.kick:
		}
		ctx, cancel := context.WithTimeout(context.Background(), s.client.Timeout)
		if err := s.Flush(ctx); err != nil {
			// the logger cannot log its own shipping failures
			fmt.Fprintf(s.errOut, "failed to ship logs: %v\n", err)
		}
		cancel()
	}
}

func (s *ELKSink) enqueue(e elkEntry) {
	s.mu.Lock()
	// at most ten batches are held while Elasticsearch is unreachable
	if len(s.buffer) >= 10*s.config.BatchSize {
		s.dropped++
		s.mu.Unlock()
		return
	}
	s.buffer = append(s.buffer, e)
	full := len(s.buffer) >= s.config.BatchSize
	s.mu.Unlock()

	if full {
		select {
		case s.kick <- struct{}{}:
		default:
		}
	}
}

// Flush sends every buffered entry in one bulk request
func (s *ELKSink) Flush(ctx context.Context) error {
	s.mu.Lock()
	if len(s.buffer) == 0 {
		s.mu.Unlock()
		return nil
	}
	entries := s.buffer
	s.buffer = make([]elkEntry, 0, s.config.BatchSize)
	dropped := s.dropped
	s.dropped = 0
	s.mu.Unlock()

	if dropped > 0 {
		entries = append(entries, elkEntry{
			Timestamp: time.Now(),
			Level:     slog.LevelWarn.String(),
			Message:   "log entries dropped while shipping was backed up",
			Fields:    map[string]any{"dropped": dropped},
		})
	}
	return s.send(ctx, entries)
}

func (s *ELKSink) send(ctx context.Context, entries []elkEntry) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, e := range entries {
		meta := map[string]map[string]string{
			"index": {"_index": fmt.Sprintf("%s-%s", s.config.Index, e.Timestamp.UTC().Format("2006.01.02"))},
		}
		if err := enc.Encode(meta); err != nil {
			return fmt.Errorf("failed to encode bulk metadata: %w", err)
		}
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("failed to encode log entry: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.URL+"/_bulk", &buf)
	if err != nil {
		return fmt.Errorf("failed to build bulk request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-ndjson")
	if s.config.Username != "" && s.config.Password != "" {
		req.SetBasicAuth(s.config.Username, s.config.Password)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send bulk request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("elasticsearch returned status %d", resp.StatusCode)
	}
	return nil
}

// Close stops the flusher and ships whatever is still buffered
func (s *ELKSink) Close(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.stop) })
	select {
	case <-s.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.Flush(ctx)
}

// ELKHandler passes records to the base handler and copies them to the sink
type ELKHandler struct {
	base   slog.Handler
	sink   *ELKSink
	attrs  []slog.Attr
	prefix string
}

// NewELKHandler creates a handler that tees base into sink
func NewELKHandler(base slog.Handler, sink *ELKSink) *ELKHandler {
	return &ELKHandler{base: base, sink: sink}
}

func (h *ELKHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

func (h *ELKHandler) Handle(ctx context.Context, record slog.Record) error {
	if err := h.base.Handle(ctx, record); err != nil {
		return err
	}

	entry := elkEntry{
		Timestamp: record.Time,
		Level:     record.Level.String(),
		Message:   record.Message,
		Fields:    make(map[string]any, len(h.attrs)+record.NumAttrs()),
	}
	for _, a := range h.attrs {
		addField(entry.Fields, "", a)
	}
	record.Attrs(func(a slog.Attr) bool {
		addField(entry.Fields, h.prefix, a)
		return true
	})

	h.sink.enqueue(entry)
	return nil
}

func (h *ELKHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	for _, a := range attrs {
		a.Key = h.prefix + a.Key
		merged = append(merged, a)
	}
	return &ELKHandler{base: h.base.WithAttrs(attrs), sink: h.sink, attrs: merged, prefix: h.prefix}
}

func (h *ELKHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &ELKHandler{base: h.base.WithGroup(name), sink: h.sink, attrs: h.attrs, prefix: h.prefix + name + "."}
}

// addField flattens a into fields with dotted keys for groups
func addField(fields map[string]any, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Value.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			addField(fields, p, ga)
		}
		return
	}
	if a.Key == "" {
		return
	}

	switch v := a.Value.Any().(type) {
	case error:
		fields[prefix+a.Key] = v.Error()
	case time.Duration:
		fields[prefix+a.Key] = v.String()
	default:
		fields[prefix+a.Key] = v
	}
}
