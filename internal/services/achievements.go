package services

import (
	"embed"
	"fmt"
	"math"
	"path"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed registry/achievements.yaml
var catalogFS embed.FS

type AchievementCategory string

const (
	CategoryConsistency AchievementCategory = "consistency"
	CategoryProgress    AchievementCategory = "progress"
	CategoryCommunity   AchievementCategory = "community"
	CategoryLearning    AchievementCategory = "learning"
)

// MetricKind selects which projection of the snapshot an achievement counts.
type MetricKind string

const (
	MetricAssessments         MetricKind = "assessments"
	MetricResources           MetricKind = "resources"
	MetricCommunityPosts      MetricKind = "community_posts"
	MetricStreak              MetricKind = "streak"
	MetricWellnessScore       MetricKind = "wellness_score"
	MetricMoodEntries         MetricKind = "mood_entries"
	MetricMoodEntriesInWindow MetricKind = "mood_entries_in_window"
)

// Extractor is a closed, serializable projection. StartHour and EndHour only
// apply to MetricMoodEntriesInWindow and bound the half-open hour range
// [StartHour, EndHour); a start after the end wraps past midnight.
type Extractor struct {
	Kind      MetricKind `yaml:"kind" json:"kind"`
	StartHour int        `yaml:"start_hour,omitempty" json:"start_hour,omitempty"`
	EndHour   int        `yaml:"end_hour,omitempty" json:"end_hour,omitempty"`
}

type AchievementDefinition struct {
	ID          string              `yaml:"id" json:"id"`
	Title       string              `yaml:"title" json:"title"`
	Description string              `yaml:"description" json:"description"`
	Category    AchievementCategory `yaml:"category" json:"category"`
	Points      int                 `yaml:"points" json:"points"`
	Requirement int                 `yaml:"requirement" json:"requirement"`
	Extractor   Extractor           `yaml:"extractor" json:"extractor"`
}

type AchievementState struct {
	ID              string              `json:"id"`
	Title           string              `json:"title"`
	Description     string              `json:"description"`
	Category        AchievementCategory `json:"category"`
	Points          int                 `json:"points"`
	Current         int                 `json:"current"`
	Requirement     int                 `json:"requirement"`
	Unlocked        bool                `json:"unlocked"`
	ProgressPercent int                 `json:"progress_percent"`
	UnlockedAt      *time.Time          `json:"unlocked_at,omitempty"`
}

// Catalog is the versioned, immutable achievement list.
type Catalog struct {
	Version      int                     `yaml:"version" json:"version"`
	Achievements []AchievementDefinition `yaml:"achievements" json:"achievements"`
}

// Len is the total achievement count reported in snapshots.
func (c *Catalog) Len() int { return len(c.Achievements) }

// DefaultCatalog loads the catalog embedded in the binary.
func DefaultCatalog() (*Catalog, error) {
	data, err := catalogFS.ReadFile(path.Join("registry", "achievements.yaml"))
	if err != nil {
		return nil, fmt.Errorf("read embedded achievements: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates a YAML achievement catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode achievements: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) Validate() error {
	seen := make(map[string]bool, len(c.Achievements))
	for _, a := range c.Achievements {
		if a.ID == "" {
			return fmt.Errorf("achievement without id")
		}
		if seen[a.ID] {
			return fmt.Errorf("achievement %q defined twice", a.ID)
		}
		seen[a.ID] = true
		if a.Requirement <= 0 {
			return fmt.Errorf("achievement %q: requirement must be positive", a.ID)
		}
		switch a.Category {
		case CategoryConsistency, CategoryProgress, CategoryCommunity, CategoryLearning:
		default:
			return fmt.Errorf("achievement %q: unknown category %q", a.ID, a.Category)
		}
		switch a.Extractor.Kind {
		case MetricAssessments, MetricResources, MetricCommunityPosts, MetricStreak,
			MetricWellnessScore, MetricMoodEntries:
		case MetricMoodEntriesInWindow:
			w := a.Extractor
			if w.StartHour < 0 || w.StartHour > 23 || w.EndHour < 0 || w.EndHour > 24 || w.StartHour == w.EndHour {
				return fmt.Errorf("achievement %q: invalid hour window [%d,%d)", a.ID, w.StartHour, w.EndHour)
			}
		default:
			return fmt.Errorf("achievement %q: unknown extractor %q", a.ID, a.Extractor.Kind)
		}
	}
	return nil
}

// EvaluationInput is everything the evaluator reads. Moods is the raw log the
// snapshot's mood count was taken from; Location fixes the clock used for
// hour-window achievements (UTC when nil).
type EvaluationInput struct {
	Snapshot ActivitySnapshot
	Moods    []MoodEntry
	Location *time.Location
}

// Evaluate computes every catalog entry's state against one snapshot.
func Evaluate(in EvaluationInput, catalog *Catalog) []AchievementState {
	loc := in.Location
	if loc == nil {
		loc = time.UTC
	}
	moods := sortedMoods(in.Moods)
	out := make([]AchievementState, 0, catalog.Len())
	for _, def := range catalog.Achievements {
		current, stamps := project(def.Extractor, in.Snapshot, moods, loc)
		st := AchievementState{
			ID:              def.ID,
			Title:           def.Title,
			Description:     def.Description,
			Category:        def.Category,
			Points:          def.Points,
			Current:         current,
			Requirement:     def.Requirement,
			Unlocked:        current >= def.Requirement,
			ProgressPercent: ProgressPercent(current, def.Requirement),
		}
		if st.Unlocked && len(stamps) >= def.Requirement {
			at := stamps[def.Requirement-1]
			st.UnlockedAt = &at
		}
		out = append(out, st)
	}
	return out
}

// CountUnlocked is the only source of unlockedAchievementCount.
func CountUnlocked(states []AchievementState) int {
	n := 0
	for _, s := range states {
		if s.Unlocked {
			n++
		}
	}
	return n
}

// ProgressPercent is min(100, round(current/requirement*100)), floored at 0.
func ProgressPercent(current, requirement int) int {
	if requirement <= 0 || current <= 0 {
		return 0
	}
	p := int(math.Round(float64(current) / float64(requirement) * 100))
	if p > 100 {
		return 100
	}
	return p
}

// project returns the count for an extractor and, for timestamped sources,
// the ascending timestamps of the qualifying entries.
func project(ex Extractor, snap ActivitySnapshot, moods []MoodEntry, loc *time.Location) (int, []time.Time) {
	switch ex.Kind {
	case MetricAssessments:
		return snap.AssessmentsCompletedCount, nil
	case MetricResources:
		return snap.ResourcesCompletedCount, nil
	case MetricCommunityPosts:
		return snap.CommunityPostsCount, nil
	case MetricStreak:
		return snap.CurrentStreak, nil
	case MetricWellnessScore:
		return snap.WellnessScore, nil
	case MetricMoodEntries:
		stamps := make([]time.Time, 0, len(moods))
		for _, m := range moods {
			stamps = append(stamps, m.Timestamp)
		}
		return snap.MoodEntriesCount, stamps
	case MetricMoodEntriesInWindow:
		var stamps []time.Time
		for _, m := range moods {
			if inHourWindow(m.Timestamp.In(loc).Hour(), ex.StartHour, ex.EndHour) {
				stamps = append(stamps, m.Timestamp)
			}
		}
		return len(stamps), stamps
	}
	return 0, nil
}

func inHourWindow(h, start, end int) bool {
	if start < end {
		return h >= start && h < end
	}
	return h >= start || h < end
}

func sortedMoods(in []MoodEntry) []MoodEntry {
	out := make([]MoodEntry, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}
