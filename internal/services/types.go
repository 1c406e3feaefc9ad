package services

import "time"

// AssessmentRecord is one scored questionnaire submission. Records are
// append-only and never edited.
type AssessmentRecord struct {
	ID             string      `json:"id"`
	UserID         string      `json:"user_id"`
	InstrumentID   string      `json:"instrument_id"`
	Responses      ResponseSet `json:"responses"`
	Score          int         `json:"score"`
	Interpretation string      `json:"interpretation"`
	Level          string      `json:"level"`
	CreatedAt      time.Time   `json:"created_at"`
}

// MoodEntry is a single mood log entry, mood in 1..5.
type MoodEntry struct {
	Mood      int       `json:"mood"`
	Timestamp time.Time `json:"timestamp"`
}

// Profile is the partial user profile the aggregator reads. Nil fields were
// absent in storage.
type Profile struct {
	TotalPoints                   *int
	GamePoints                    *int
	Streak                        *int
	Level                         *int
	WellnessScore                 *int
	HasCompletedInitialAssessment *bool
	Moods                         []MoodEntry
}

// ActivitySnapshot is recomputed on every request and never persisted.
type ActivitySnapshot struct {
	TotalPoints               int `json:"total_points"`
	UnlockedAchievementCount  int `json:"unlocked_achievement_count"`
	TotalAchievementCount     int `json:"total_achievement_count"`
	CurrentStreak             int `json:"current_streak"`
	Level                     int `json:"level"`
	WellnessScore             int `json:"wellness_score"`
	AssessmentsCompletedCount int `json:"assessments_completed_count"`
	MoodEntriesCount          int `json:"mood_entries_count"`
	ResourcesCompletedCount   int `json:"resources_completed_count"`
	CommunityPostsCount       int `json:"community_posts_count"`
}

// ResultPoint is the per-instrument chart triple.
type ResultPoint struct {
	Score          int       `json:"score"`
	Interpretation string    `json:"interpretation"`
	Date           time.Time `json:"date"`
}

// Source names one of the aggregator's independent reads.
type Source string

const (
	SourceProfile     Source = "profile"
	SourceAssessments Source = "assessments"
	SourceResources   Source = "resources"
	SourceCommunity   Source = "community"
)

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}
