package api

import (
	"context"
	"time"

	"github.com/soaringjerry/Mindwell/internal/services"
)

// ProfileUpdate replaces the stored profile fields. Nil fields are stored as
// absent.
type ProfileUpdate struct {
	TotalPoints                   *int
	GamePoints                    *int
	Streak                        *int
	Level                         *int
	WellnessScore                 *int
	HasCompletedInitialAssessment *bool
}

// Store is everything the API needs from persistence. The read side is the
// services' ProgressStore; the write side below is how the surrounding
// application (and the seed endpoint) feeds the external signals in.
type Store interface {
	services.ProgressStore
	services.AssessmentStore
	services.AnalyticsStore

	UpsertProfile(ctx context.Context, userID string, p ProfileUpdate) error
	AddMood(ctx context.Context, userID string, m services.MoodEntry) error
	CompleteResource(ctx context.Context, userID, resourceID string, at time.Time) error
	AddCommunityPost(ctx context.Context, userID, postID string, at time.Time) error
}

var _ Store = (*memoryStore)(nil)
