package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/soaringjerry/Mindwell/internal/platform/logger"
)

// AssessmentStore persists records. AppendAssessment must never overwrite an
// existing record.
type AssessmentStore interface {
	AppendAssessment(ctx context.Context, rec *AssessmentRecord) error
	ListAssessments(ctx context.Context, userID string) ([]*AssessmentRecord, error)
}

type SubmitRequest struct {
	UserID       string
	InstrumentID string
	Responses    ResponseSet
}

// AssessmentService hosts the submission workflow and per-instrument history.
type AssessmentService struct {
	store       AssessmentStore
	registry    *Registry
	log         *logger.Logger
	now         func() time.Time
	idGenerator func() string
}

func NewAssessmentService(store AssessmentStore, registry *Registry, log *logger.Logger) *AssessmentService {
	if log == nil {
		log = logger.Nop()
	}
	return &AssessmentService{
		store:       store,
		registry:    registry,
		log:         log.With("service", "AssessmentService"),
		now:         func() time.Time { return time.Now().UTC() },
		idGenerator: uuid.NewString,
	}
}

// Submit scores, interprets and appends one full questionnaire. Any error
// aborts only this submission; nothing is stored.
func (s *AssessmentService) Submit(ctx context.Context, req SubmitRequest) (*AssessmentRecord, error) {
	if req.UserID == "" {
		return nil, NewUnauthorizedError("user id required")
	}
	in, err := s.registry.Get(req.InstrumentID)
	if err != nil {
		return nil, &ServiceError{Code: ErrorNotFound, Message: err.Error(), Err: err}
	}
	score, err := Score(in, req.Responses)
	if err != nil {
		return nil, err
	}
	band, err := Interpret(in, score)
	if err != nil {
		s.log.Error("score outside instrument range", "instrument", in.ID, "score", score, "error", err)
		return nil, err
	}

	responses := make(ResponseSet, len(req.Responses))
	for k, v := range req.Responses {
		responses[k] = v
	}
	rec := &AssessmentRecord{
		ID:             s.idGenerator(),
		UserID:         req.UserID,
		InstrumentID:   in.ID,
		Responses:      responses,
		Score:          score,
		Interpretation: band.Label,
		Level:          band.Level,
		CreatedAt:      s.now(),
	}
	if err := s.store.AppendAssessment(ctx, rec); err != nil {
		return nil, fmt.Errorf("append assessment: %w", err)
	}
	s.log.Info("assessment recorded", "user_id", req.UserID, "instrument", in.ID, "level", band.Level)
	return rec, nil
}

// History returns one instrument's records ordered by timestamp ascending.
func (s *AssessmentService) History(ctx context.Context, userID, instrumentID string) ([]*AssessmentRecord, error) {
	if userID == "" {
		return nil, NewUnauthorizedError("user id required")
	}
	if _, err := s.registry.Get(instrumentID); err != nil {
		return nil, &ServiceError{Code: ErrorNotFound, Message: err.Error(), Err: err}
	}
	all, err := s.store.ListAssessments(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	out := make([]*AssessmentRecord, 0, len(all))
	for _, r := range all {
		if r != nil && r.InstrumentID == instrumentID {
			out = append(out, r)
		}
	}
	SortByTime(out)
	return out, nil
}

// Results returns the chart triples for one instrument plus its trend.
func (s *AssessmentService) Results(ctx context.Context, userID, instrumentID string) ([]ResultPoint, TrendResult, error) {
	history, err := s.History(ctx, userID, instrumentID)
	if err != nil {
		return nil, TrendResult{}, err
	}
	points := make([]ResultPoint, 0, len(history))
	for _, r := range history {
		points = append(points, ResultPoint{Score: r.Score, Interpretation: r.Interpretation, Date: r.CreatedAt})
	}
	return points, Trend(history), nil
}

// SortByTime orders records by CreatedAt ascending, keeping insertion order
// for equal timestamps.
func SortByTime(rs []*AssessmentRecord) {
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].CreatedAt.Before(rs[j].CreatedAt) })
}
