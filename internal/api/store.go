package api

import (
	"context"
	"sync"
	"time"

	"github.com/soaringjerry/Mindwell/internal/services"
)

type profileRow struct {
	ProfileUpdate
	moods []services.MoodEntry
}

type memoryStore struct {
	mu          sync.RWMutex
	profiles    map[string]*profileRow
	assessments []*services.AssessmentRecord
	resources   map[string]map[string]time.Time
	posts       map[string]map[string]time.Time
}

// NewMemoryStore returns a process-local Store, used when no SQLite path is
// configured and in tests.
func NewMemoryStore() Store {
	return newMemoryStore()
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		profiles:  map[string]*profileRow{},
		resources: map[string]map[string]time.Time{},
		posts:     map[string]map[string]time.Time{},
	}
}

func (s *memoryStore) GetProfile(_ context.Context, userID string) (*services.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.profiles[userID]
	if row == nil {
		return &services.Profile{}, nil
	}
	return &services.Profile{
		TotalPoints:                   row.TotalPoints,
		GamePoints:                    row.GamePoints,
		Streak:                        row.Streak,
		Level:                         row.Level,
		WellnessScore:                 row.WellnessScore,
		HasCompletedInitialAssessment: row.HasCompletedInitialAssessment,
		Moods:                         append([]services.MoodEntry(nil), row.moods...),
	}, nil
}

func (s *memoryStore) UpsertProfile(_ context.Context, userID string, p ProfileUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.profiles[userID]
	if row == nil {
		row = &profileRow{}
		s.profiles[userID] = row
	}
	row.ProfileUpdate = p
	return nil
}

func (s *memoryStore) AddMood(_ context.Context, userID string, m services.MoodEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.profiles[userID]
	if row == nil {
		row = &profileRow{}
		s.profiles[userID] = row
	}
	row.moods = append(row.moods, m)
	return nil
}

func (s *memoryStore) AppendAssessment(_ context.Context, rec *services.AssessmentRecord) error {
	cp := *rec
	s.mu.Lock()
	s.assessments = append(s.assessments, &cp)
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) ListAssessments(_ context.Context, userID string) ([]*services.AssessmentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*services.AssessmentRecord, 0)
	for _, r := range s.assessments {
		if r.UserID == userID {
			cp := *r
			out = append(out, &cp)
		}
	}
	services.SortByTime(out)
	return out, nil
}

func (s *memoryStore) ListAssessmentsByInstrument(_ context.Context, instrumentID string) ([]*services.AssessmentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*services.AssessmentRecord, 0)
	for _, r := range s.assessments {
		if r.InstrumentID == instrumentID {
			cp := *r
			out = append(out, &cp)
		}
	}
	services.SortByTime(out)
	return out, nil
}

func (s *memoryStore) CompleteResource(_ context.Context, userID, resourceID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resources[userID] == nil {
		s.resources[userID] = map[string]time.Time{}
	}
	s.resources[userID][resourceID] = at
	return nil
}

func (s *memoryStore) CountCompletedResources(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.resources[userID]), nil
}

func (s *memoryStore) AddCommunityPost(_ context.Context, userID, postID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.posts[userID] == nil {
		s.posts[userID] = map[string]time.Time{}
	}
	s.posts[userID][postID] = at
	return nil
}

func (s *memoryStore) CountCommunityPosts(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.posts[userID]), nil
}
