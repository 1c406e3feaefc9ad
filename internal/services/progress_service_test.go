package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/soaringjerry/Mindwell/internal/platform/logger"
)

var errDown = errors.New("backend down")

type stubProgressStore struct {
	profile      *Profile
	profileErr   error
	records      []*AssessmentRecord
	recordsErr   error
	resources    int
	resourcesErr error
	posts        int
	postsErr     error
	block        map[Source]bool
	panicOn      Source
}

func (s *stubProgressStore) wait(ctx context.Context, src Source) error {
	if s.panicOn == src {
		panic("boom")
	}
	if s.block[src] {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (s *stubProgressStore) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	if err := s.wait(ctx, SourceProfile); err != nil {
		return nil, err
	}
	return s.profile, s.profileErr
}

func (s *stubProgressStore) ListAssessments(ctx context.Context, userID string) ([]*AssessmentRecord, error) {
	if err := s.wait(ctx, SourceAssessments); err != nil {
		return nil, err
	}
	return s.records, s.recordsErr
}

func (s *stubProgressStore) CountCompletedResources(ctx context.Context, userID string) (int, error) {
	if err := s.wait(ctx, SourceResources); err != nil {
		return 0, err
	}
	return s.resources, s.resourcesErr
}

func (s *stubProgressStore) CountCommunityPosts(ctx context.Context, userID string) (int, error) {
	if err := s.wait(ctx, SourceCommunity); err != nil {
		return 0, err
	}
	return s.posts, s.postsErr
}

func ptr[T any](v T) *T { return &v }

func records(n int) []*AssessmentRecord {
	return history(make([]int, n)...)
}

func fullStore() *stubProgressStore {
	return &stubProgressStore{
		profile: &Profile{
			TotalPoints:                   ptr(120),
			GamePoints:                    ptr(30),
			Streak:                        ptr(8),
			Level:                         ptr(3),
			WellnessScore:                 ptr(72),
			HasCompletedInitialAssessment: ptr(true),
			Moods: []MoodEntry{
				{Mood: 4, Timestamp: time.Date(2025, 6, 1, 6, 30, 0, 0, time.UTC)},
				{Mood: 2, Timestamp: time.Date(2025, 6, 2, 21, 0, 0, 0, time.UTC)},
			},
		},
		records:   records(3),
		resources: 6,
		posts:     2,
	}
}

func newProgress(t *testing.T, store ProgressStore) *ProgressService {
	t.Helper()
	return NewProgressService(store, testCatalog(t), ProgressOptions{Timeout: 50 * time.Millisecond})
}

func TestAggregateAllSources(t *testing.T) {
	svc := newProgress(t, fullStore())
	agg, err := svc.Aggregate(context.Background(), "u1")
	require.NoError(t, err)
	assert.Nil(t, agg.Warning)

	snap := agg.Snapshot
	assert.Equal(t, 150, snap.TotalPoints)
	assert.Equal(t, 8, snap.CurrentStreak)
	assert.Equal(t, 3, snap.Level)
	assert.Equal(t, 72, snap.WellnessScore)
	assert.Equal(t, 3, snap.AssessmentsCompletedCount)
	assert.Equal(t, 2, snap.MoodEntriesCount)
	assert.Equal(t, 6, snap.ResourcesCompletedCount)
	assert.Equal(t, 2, snap.CommunityPostsCount)
	assert.Equal(t, 12, snap.TotalAchievementCount)
	// first-steps, week-warrior, knowledge-seeker, community-voice
	assert.Equal(t, 4, snap.UnlockedAchievementCount)
}

func TestAggregateAbsentProfileFields(t *testing.T) {
	store := fullStore()
	store.profile = &Profile{TotalPoints: ptr(40)}
	agg, err := newProgress(t, store).Aggregate(context.Background(), "u1")
	require.NoError(t, err)
	assert.Nil(t, agg.Warning)
	assert.Equal(t, 40, agg.Snapshot.TotalPoints)
	assert.Equal(t, 1, agg.Snapshot.Level)
	assert.Zero(t, agg.Snapshot.CurrentStreak)
	assert.Zero(t, agg.Snapshot.MoodEntriesCount)

	store.profile = &Profile{GamePoints: ptr(15)}
	agg, err = newProgress(t, store).Aggregate(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 15, agg.Snapshot.TotalPoints)
}

func TestAggregateResourceFallback(t *testing.T) {
	cases := []struct {
		assessments int
		want        int
	}{
		{0, 0},
		{1, 2},
		{2, 4},
		{3, 5},
		{9, 5},
	}
	for _, c := range cases {
		store := fullStore()
		store.records = records(c.assessments)
		store.resourcesErr = errDown
		agg, err := newProgress(t, store).Aggregate(context.Background(), "u1")
		require.NoError(t, err)
		assert.Equal(t, c.want, agg.Snapshot.ResourcesCompletedCount, "assessments=%d", c.assessments)
		require.NotNil(t, agg.Warning)
		assert.True(t, agg.Warning.Has(SourceResources))
		assert.False(t, agg.Warning.Has(SourceAssessments))
	}
}

func TestAggregateAssessmentFallback(t *testing.T) {
	for _, completed := range []bool{true, false} {
		store := fullStore()
		store.profile.HasCompletedInitialAssessment = ptr(completed)
		store.recordsErr = errDown
		store.resourcesErr = errDown
		agg, err := newProgress(t, store).Aggregate(context.Background(), "u1")
		require.NoError(t, err)

		want := 0
		if completed {
			want = 1
		}
		assert.Equal(t, want, agg.Snapshot.AssessmentsCompletedCount)
		// resource proxy is computed from the fallen-back assessment count
		assert.Equal(t, min(want*2, 5), agg.Snapshot.ResourcesCompletedCount)
		assert.ElementsMatch(t, []Source{SourceAssessments, SourceResources}, agg.Warning.Sources)
	}
}

func TestAggregateCommunityFallback(t *testing.T) {
	store := fullStore()
	store.postsErr = errDown
	agg, err := newProgress(t, store).Aggregate(context.Background(), "u1")
	require.NoError(t, err)
	assert.Zero(t, agg.Snapshot.CommunityPostsCount)
	assert.Equal(t, 6, agg.Snapshot.ResourcesCompletedCount)
	assert.Equal(t, []Source{SourceCommunity}, agg.Warning.Sources)
}

func TestAggregateProfileFallback(t *testing.T) {
	store := fullStore()
	store.profileErr = errDown
	agg, err := newProgress(t, store).Aggregate(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, agg.Warning.Has(SourceProfile))
	assert.Zero(t, agg.Snapshot.TotalPoints)
	assert.Equal(t, 1, agg.Snapshot.Level)
	assert.Zero(t, agg.Snapshot.MoodEntriesCount)
	// the other reads still land
	assert.Equal(t, 3, agg.Snapshot.AssessmentsCompletedCount)
	assert.Equal(t, 6, agg.Snapshot.ResourcesCompletedCount)
	assert.Equal(t, 2, agg.Snapshot.CommunityPostsCount)
}

func TestAggregateEverythingDown(t *testing.T) {
	store := &stubProgressStore{profileErr: errDown, recordsErr: errDown, resourcesErr: errDown, postsErr: errDown}
	agg, err := newProgress(t, store).Aggregate(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, agg.Warning.Sources, 4)
	assert.Equal(t, ActivitySnapshot{Level: 1, TotalAchievementCount: 12}, agg.Snapshot)
}

func TestAggregateTimeoutIsFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := fullStore()
	store.block = map[Source]bool{SourceResources: true, SourceCommunity: true}
	svc := NewProgressService(store, testCatalog(t), ProgressOptions{Timeout: 20 * time.Millisecond})

	start := time.Now()
	agg, err := svc.Aggregate(context.Background(), "u1")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)

	assert.Equal(t, 5, agg.Snapshot.ResourcesCompletedCount)
	assert.Zero(t, agg.Snapshot.CommunityPostsCount)
	assert.Equal(t, 3, agg.Snapshot.AssessmentsCompletedCount)
	assert.ElementsMatch(t, []Source{SourceResources, SourceCommunity}, agg.Warning.Sources)
}

func TestAggregatePanickingSource(t *testing.T) {
	store := fullStore()
	store.panicOn = SourceCommunity
	agg, err := newProgress(t, store).Aggregate(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, agg.Warning.Has(SourceCommunity))
	assert.Equal(t, 6, agg.Snapshot.ResourcesCompletedCount)
}

func TestAggregateIdempotent(t *testing.T) {
	store := fullStore()
	store.resourcesErr = errDown
	svc := newProgress(t, store)

	first, err := svc.Aggregate(context.Background(), "u1")
	require.NoError(t, err)
	second, err := svc.Aggregate(context.Background(), "u1")
	require.NoError(t, err)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("aggregate not idempotent (-first +second):\n%s", diff)
	}
}

func TestAggregateUnlockedCountFromSameSnapshot(t *testing.T) {
	store := fullStore()
	store.profile.Streak = ptr(31)
	store.profile.WellnessScore = ptr(85)
	store.posts = 12
	agg, err := newProgress(t, store).Aggregate(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, CountUnlocked(agg.Achievements), agg.Snapshot.UnlockedAchievementCount)
	again := Evaluate(EvaluationInput{Snapshot: agg.Snapshot, Moods: agg.Moods}, testCatalog(t))
	assert.Equal(t, CountUnlocked(again), agg.Snapshot.UnlockedAchievementCount)
}

func TestAggregateLogsFallbacks(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	store := fullStore()
	store.postsErr = errDown
	svc := NewProgressService(store, testCatalog(t), ProgressOptions{Logger: logger.FromZap(zap.New(core))})

	_, err := svc.Aggregate(context.Background(), "u1")
	require.NoError(t, err)
	entries := logs.FilterField(zap.String("source", "community")).All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
}

func TestAggregateRequiresUser(t *testing.T) {
	_, err := newProgress(t, fullStore()).Aggregate(context.Background(), "")
	se, ok := AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, ErrorUnauthorized, se.Code)
}

func TestAchievementsCategoryFilter(t *testing.T) {
	svc := newProgress(t, fullStore())
	states, warn, err := svc.Achievements(context.Background(), "u1", CategoryCommunity)
	require.NoError(t, err)
	assert.Nil(t, warn)
	require.Len(t, states, 2)
	for _, s := range states {
		assert.Equal(t, CategoryCommunity, s.Category)
	}

	all, _, err := svc.Achievements(context.Background(), "u1", "")
	require.NoError(t, err)
	assert.Len(t, all, 12)
}
