package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/soaringjerry/Mindwell/internal/platform/logger"
)

// The four reads behind a snapshot. Sparse per-user collections may not
// exist at all; implementations report that as a zero count, and reserve
// errors for reads that genuinely failed.
type ProfileReader interface {
	GetProfile(ctx context.Context, userID string) (*Profile, error)
}

type AssessmentReader interface {
	ListAssessments(ctx context.Context, userID string) ([]*AssessmentRecord, error)
}

type ResourceReader interface {
	CountCompletedResources(ctx context.Context, userID string) (int, error)
}

type CommunityReader interface {
	CountCommunityPosts(ctx context.Context, userID string) (int, error)
}

type ProgressStore interface {
	ProfileReader
	AssessmentReader
	ResourceReader
	CommunityReader
}

const (
	DefaultSourceTimeout = 2 * time.Second
	// resourceProxyCap bounds the resource-count estimate used when the
	// resource source is down. The 2x multiplier is a placeholder heuristic.
	resourceProxyCap        = 5
	resourceProxyMultiplier = 2
	defaultLevel            = 1
)

type ProgressOptions struct {
	Timeout  time.Duration
	Location *time.Location
	Logger   *logger.Logger
}

type ProgressService struct {
	store    ProgressStore
	catalog  *Catalog
	timeout  time.Duration
	location *time.Location
	log      *logger.Logger
}

// Aggregation is the result of one aggregate call. Warning is non-nil when
// any fallback fired.
type Aggregation struct {
	Snapshot     ActivitySnapshot
	Moods        []MoodEntry
	Achievements []AchievementState
	Warning      *AggregationDegradedWarning
}

func NewProgressService(store ProgressStore, catalog *Catalog, opts ProgressOptions) *ProgressService {
	s := &ProgressService{
		store:    store,
		catalog:  catalog,
		timeout:  opts.Timeout,
		location: opts.Location,
		log:      opts.Logger,
	}
	if s.timeout <= 0 {
		s.timeout = DefaultSourceTimeout
	}
	if s.location == nil {
		s.location = time.UTC
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	s.log = s.log.With("service", "ProgressService")
	return s
}

// Aggregate reads all four sources concurrently and resolves each to a
// number, substituting its fallback when the read fails or times out. It only
// returns an error for an invalid request; degraded data comes back with a
// warning instead.
func (s *ProgressService) Aggregate(ctx context.Context, userID string) (*Aggregation, error) {
	if userID == "" {
		return nil, NewUnauthorizedError("user id required")
	}

	var (
		profile    *Profile
		records    []*AssessmentRecord
		resources  int
		posts      int
		profileErr error
		recordsErr error
		resErr     error
		postsErr   error
	)

	// every goroutine returns nil: a failing source must not cancel its siblings
	var g errgroup.Group
	g.Go(func() error {
		profile, profileErr = readSource(ctx, s.timeout, SourceProfile, func(ctx context.Context) (*Profile, error) {
			return s.store.GetProfile(ctx, userID)
		})
		return nil
	})
	g.Go(func() error {
		records, recordsErr = readSource(ctx, s.timeout, SourceAssessments, func(ctx context.Context) ([]*AssessmentRecord, error) {
			return s.store.ListAssessments(ctx, userID)
		})
		return nil
	})
	g.Go(func() error {
		resources, resErr = readSource(ctx, s.timeout, SourceResources, func(ctx context.Context) (int, error) {
			return s.store.CountCompletedResources(ctx, userID)
		})
		return nil
	})
	g.Go(func() error {
		posts, postsErr = readSource(ctx, s.timeout, SourceCommunity, func(ctx context.Context) (int, error) {
			return s.store.CountCommunityPosts(ctx, userID)
		})
		return nil
	})
	_ = g.Wait()

	var fallbacks []Source
	fallback := func(err error, src Source) {
		fallbacks = append(fallbacks, src)
		s.log.Warn("aggregation source unavailable, using fallback", "user_id", userID, "source", string(src), "error", err)
	}

	if profileErr != nil || profile == nil {
		if profileErr == nil {
			profileErr = fmt.Errorf("no profile record")
		}
		fallback(profileErr, SourceProfile)
		profile = &Profile{}
	}

	snap := ActivitySnapshot{
		TotalPoints:      intOr(profile.TotalPoints, 0) + intOr(profile.GamePoints, 0),
		CurrentStreak:    intOr(profile.Streak, 0),
		Level:            intOr(profile.Level, defaultLevel),
		WellnessScore:    intOr(profile.WellnessScore, 0),
		MoodEntriesCount: len(profile.Moods),
	}

	if recordsErr != nil {
		fallback(recordsErr, SourceAssessments)
		if profile.HasCompletedInitialAssessment != nil && *profile.HasCompletedInitialAssessment {
			snap.AssessmentsCompletedCount = 1
		}
	} else {
		snap.AssessmentsCompletedCount = len(records)
	}

	if resErr != nil {
		fallback(resErr, SourceResources)
		snap.ResourcesCompletedCount = min(snap.AssessmentsCompletedCount*resourceProxyMultiplier, resourceProxyCap)
	} else {
		snap.ResourcesCompletedCount = resources
	}

	if postsErr != nil {
		fallback(postsErr, SourceCommunity)
		snap.CommunityPostsCount = 0
	} else {
		snap.CommunityPostsCount = posts
	}

	states := Evaluate(EvaluationInput{Snapshot: snap, Moods: profile.Moods, Location: s.location}, s.catalog)
	snap.UnlockedAchievementCount = CountUnlocked(states)
	snap.TotalAchievementCount = s.catalog.Len()

	agg := &Aggregation{Snapshot: snap, Moods: profile.Moods, Achievements: states}
	if len(fallbacks) > 0 {
		agg.Warning = &AggregationDegradedWarning{Sources: fallbacks}
	}
	return agg, nil
}

// Achievements returns the evaluated catalog, optionally narrowed to one
// category. Filtering happens after evaluation so the unlocked count in the
// snapshot always refers to the whole catalog.
func (s *ProgressService) Achievements(ctx context.Context, userID string, category AchievementCategory) ([]AchievementState, *AggregationDegradedWarning, error) {
	agg, err := s.Aggregate(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if category == "" {
		return agg.Achievements, agg.Warning, nil
	}
	out := make([]AchievementState, 0, len(agg.Achievements))
	for _, st := range agg.Achievements {
		if st.Category == category {
			out = append(out, st)
		}
	}
	return out, agg.Warning, nil
}

// readSource runs one read under its own deadline. A timeout, an error or a
// panic all come back as *SourceUnavailableError.
func readSource[T any](ctx context.Context, timeout time.Duration, src Source, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				ch <- result{zero, fmt.Errorf("panic: %v", r)}
			}
		}()
		v, err := fn(ctx)
		ch <- result{v, err}
	}()

	var zero T
	select {
	case r := <-ch:
		if r.err != nil {
			return zero, &SourceUnavailableError{Source: src, Err: r.err}
		}
		return r.v, nil
	case <-ctx.Done():
		return zero, &SourceUnavailableError{Source: src, Err: ctx.Err()}
	}
}
