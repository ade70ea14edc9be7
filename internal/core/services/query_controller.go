// internal/core/services/query_controller.go
package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ammerola/medboard/internal/core/domain"
	"github.com/ammerola/medboard/internal/core/format"
	"github.com/ammerola/medboard/internal/core/ports"
	"github.com/ammerola/medboard/internal/pkg/logger"
)

// DefaultQueryTimeout bounds one backend round trip.
const DefaultQueryTimeout = 30 * time.Second

// CaseSaver appends a case to a client's journal
type CaseSaver interface {
	Save(ctx context.Context, clientID string, c domain.PatientCase) error
}

// Extractors bundles the extraction strategies applied to answers
type Extractors struct {
	Diseases  ports.DiseaseExtractor
	Recovery  ports.RecoveryExtractor
	Resources ports.ResourceExtractor
}

// QueryResult is the structured output of one submission
type QueryResult struct {
	Sequence  uint64                    `json:"sequence"`
	Request   domain.QueryRequest       `json:"request"`
	Answer    string                    `json:"answer"`
	Response  format.Response           `json:"response"`
	Diseases  []domain.ExtractedDisease `json:"diseases,omitempty"`
	Stages    []domain.RecoveryStage    `json:"stages,omitempty"`
	Resources domain.Resources          `json:"resources,omitempty"`
	Case      *domain.PatientCase       `json:"case,omitempty"`
	Duration  time.Duration             `json:"duration"`

	// HistoryErr is set when the answer succeeded but saving the case did not.
	HistoryErr error `json:"-"`
}

// QueryController runs one client's query submissions. Each submission takes
// a new sequence number and cancels the one in flight; a response that
// arrives after a newer submission started is discarded with
// domain.ErrStaleResponse.
type QueryController struct {
	clientID   string
	backend    ports.BackendClient
	cases      CaseSaver
	extractors Extractors
	timeout    time.Duration
	logger     *slog.Logger
	now        func() time.Time

	seq      atomic.Uint64
	mu       sync.Mutex
	inFlight context.CancelFunc

	listenerMu sync.Mutex
	listeners  map[int]func(*QueryResult)
	nextID     int
}

// QueryOption customizes a QueryController
type QueryOption func(*QueryController)

// WithQueryTimeout overrides DefaultQueryTimeout
func WithQueryTimeout(d time.Duration) QueryOption {
	return func(c *QueryController) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithClock sets the clock used to stamp saved cases
func WithClock(now func() time.Time) QueryOption {
	return func(c *QueryController) { c.now = now }
}

// NewQueryController creates a controller for clientID
func NewQueryController(clientID string, backend ports.BackendClient, cases CaseSaver,
	extractors Extractors, logger *slog.Logger, opts ...QueryOption) *QueryController {
	c := &QueryController{
		clientID:   clientID,
		backend:    backend,
		cases:      cases,
		extractors: extractors,
		timeout:    DefaultQueryTimeout,
		logger:     logger.With(slog.String("service", "query")),
		now:        time.Now,
		listeners:  make(map[int]func(*QueryResult)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit validates req, sends it to the backend and shapes the answer. When
// saveToHistory is set a PatientCase is appended to the journal; a failed
// save is reported in QueryResult.HistoryErr without failing the query.
func (c *QueryController) Submit(ctx context.Context, req domain.QueryRequest, saveToHistory bool) (*QueryResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	// The sequence is taken under the lock so the newest token always
	// belongs to the submission that cancelled its predecessors.
	c.mu.Lock()
	seq := c.seq.Add(1)
	if c.inFlight != nil {
		c.inFlight()
	}
	c.inFlight = cancel
	c.mu.Unlock()
	defer cancel()

	log := c.logger.With(
		slog.Uint64("sequence", seq),
		slog.String("query_type", string(req.QueryType)))
	log.InfoContext(ctx, "Submitting query")

	start := time.Now()
	answer, err := c.send(callCtx, req)
	elapsed := time.Since(start)

	if c.seq.Load() != seq {
		log.InfoContext(ctx, "Discarding superseded response", slog.Duration("elapsed", elapsed))
		return nil, domain.ErrStaleResponse
	}
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = &domain.TimeoutError{Endpoint: ports.EndpointFor(req.QueryType), After: c.timeout}
		}
		log.ErrorContext(ctx, "Query failed", logger.Err(err), slog.Duration("elapsed", elapsed))
		return nil, err
	}

	result := c.shape(seq, req, answer)
	result.Duration = elapsed

	if saveToHistory {
		pc := domain.NewPatientCase(req, c.now())
		if err := c.cases.Save(ctx, c.clientID, pc); err != nil {
			log.WarnContext(ctx, "Query answered but case was not saved", logger.Err(err))
			result.HistoryErr = err
		} else {
			result.Case = &pc
		}
	}

	log.InfoContext(ctx, "Query answered",
		slog.Duration("elapsed", elapsed),
		slog.Int("sections", len(result.Response.Sections)),
		slog.Int("sources", len(result.Response.Sources)))

	c.notify(result)
	return result, nil
}

// Cancel aborts the submission in flight, if any.
func (c *QueryController) Cancel() {
	c.seq.Add(1)
	c.mu.Lock()
	if c.inFlight != nil {
		c.inFlight()
		c.inFlight = nil
	}
	c.mu.Unlock()
}

// OnResult registers fn for every accepted result. The returned func
// unsubscribes.
func (c *QueryController) OnResult(fn func(*QueryResult)) func() {
	c.listenerMu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.listenerMu.Unlock()

	return func() {
		c.listenerMu.Lock()
		delete(c.listeners, id)
		c.listenerMu.Unlock()
	}
}

func (c *QueryController) notify(result *QueryResult) {
	c.listenerMu.Lock()
	fns := make([]func(*QueryResult), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.listenerMu.Unlock()

	for _, fn := range fns {
		fn(result)
	}
}

func (c *QueryController) send(ctx context.Context, req domain.QueryRequest) (string, error) {
	if req.QueryType.IsMedical() {
		return c.backend.MedicalQuery(ctx, req)
	}
	return c.backend.Query(ctx, req.GeneralQuery)
}

// shape formats the answer and runs the extractors that apply to the query
// type. General answers get every extractor.
func (c *QueryController) shape(seq uint64, req domain.QueryRequest, answer string) *QueryResult {
	result := &QueryResult{
		Sequence: seq,
		Request:  req,
		Answer:   answer,
		Response: format.Format(answer, req.QueryType),
	}

	body, _ := format.SplitSources(answer)
	qt := req.QueryType
	if qt == domain.QueryDisease || qt == domain.QueryGeneral {
		result.Diseases = c.extractors.Diseases.ExtractDiseases(body)
	}
	if qt == domain.QueryRecovery || qt == domain.QueryGeneral {
		result.Stages = c.extractors.Recovery.ExtractRecoveryStages(body)
	}
	if qt == domain.QueryResources || qt == domain.QueryGeneral {
		result.Resources = c.extractors.Resources.ExtractResources(body)
	}
	return result
}
