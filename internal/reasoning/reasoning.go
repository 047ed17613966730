// Package reasoning talks to the optional external reasoning service that
// proposes offers and triages photos. Every call is bounded by a timeout;
// callers treat any error as a cue to use their deterministic fallback.
package reasoning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tidwall/sjson"

	"github.com/rafaelmaranon/FixNow/internal/domain"
)

const DefaultTimeout = 5 * time.Second

type Operation string

const (
	OpOffers Operation = "offers"
	OpTriage Operation = "triage"
)

var (
	ErrTimeout   = errors.New("reasoning call timed out")
	ErrMalformed = errors.New("malformed reasoning payload")
)

// ExternalError wraps any failure of the reasoning service.
type ExternalError struct {
	Op         Operation
	StatusCode int
	Err        error
}

func (e *ExternalError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("reasoning %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("reasoning %s: %v", e.Op, e.Err)
}

func (e *ExternalError) Unwrap() error { return e.Err }

// Backend sends one JSON request and returns the raw reply.
type Backend interface {
	Call(ctx context.Context, op Operation, request []byte) ([]byte, error)
}

// Proposal is an offer suggested by the service, before it gets an id.
// Salvaged marks a proposal recovered from a malformed reply.
type Proposal struct {
	ContractorID   string
	ContractorName string
	Price          float64
	ETA            string
	Message        string
	Rating         float64
	Type           domain.OfferType
	Salvaged       bool
}

type TriageRequest struct {
	Context  string
	ImageURL string
}

type Service struct {
	backend Backend
	timeout time.Duration
	logger  *slog.Logger
}

func NewService(b Backend, timeout time.Duration, logger *slog.Logger) *Service {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{backend: b, timeout: timeout, logger: logger}
}

// ProposeOffers asks the service for offers on job. An empty result is
// not an error; callers decide what to do with it.
func (s *Service) ProposeOffers(ctx context.Context, job domain.Job) ([]Proposal, error) {
	req := []byte(`{}`)
	req, _ = sjson.SetBytes(req, "job.id", job.ID)
	req, _ = sjson.SetBytes(req, "job.category", job.Category)
	req, _ = sjson.SetBytes(req, "job.description", job.Description)
	req, _ = sjson.SetBytes(req, "job.address", job.Address)
	req, _ = sjson.SetBytes(req, "job.price", job.Price)
	req, _ = sjson.SetBytes(req, "job.urgency", string(job.Urgency))
	req, _ = sjson.SetBytes(req, "count", 2)
	raw, err := s.call(ctx, OpOffers, req)
	if err != nil {
		return nil, err
	}
	proposals, err := parseProposals(raw)
	if err != nil {
		return nil, &ExternalError{Op: OpOffers, Err: err}
	}
	return proposals, nil
}

func (s *Service) Triage(ctx context.Context, tr TriageRequest) (domain.Analysis, error) {
	req := []byte(`{}`)
	req, _ = sjson.SetBytes(req, "context", tr.Context)
	req, _ = sjson.SetBytes(req, "imageUrl", tr.ImageURL)
	raw, err := s.call(ctx, OpTriage, req)
	if err != nil {
		return domain.Analysis{}, err
	}
	a, err := parseAnalysis(raw)
	if err != nil {
		return domain.Analysis{}, &ExternalError{Op: OpTriage, Err: err}
	}
	return a, nil
}

type callResult struct {
	body []byte
	err  error
}

// call runs the backend on its own goroutine so the caller is released
// when the timeout fires even if the backend ignores ctx. A late reply
// lands in the buffered channel and is dropped.
func (s *Service) call(ctx context.Context, op Operation, req []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	ch := make(chan callResult, 1)
	started := time.Now()
	go func() {
		body, err := s.backend.Call(ctx, op, req)
		ch <- callResult{body: body, err: err}
	}()
	select {
	case r := <-ch:
		if r.err != nil {
			var ee *ExternalError
			if !errors.As(r.err, &ee) {
				r.err = &ExternalError{Op: op, Err: r.err}
			}
			return nil, r.err
		}
		s.logger.Debug("reasoning call finished", "op", op, "elapsed", time.Since(started))
		return r.body, nil
	case <-ctx.Done():
		return nil, &ExternalError{Op: op, Err: ErrTimeout}
	}
}
