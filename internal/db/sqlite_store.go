package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/soaringjerry/Mindwell/internal/api"
	"github.com/soaringjerry/Mindwell/internal/services"
)

type SQLiteStore struct {
	db *sql.DB
}

var _ api.Store = (*SQLiteStore)(nil)

// Open creates the database file if needed, applies pragmas and migrations
// and returns a ready store.
func Open(ctx context.Context, sqlitePath, migrationsDir string) (*SQLiteStore, error) {
	if sqlitePath == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(sqlitePath), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", filepath.ToSlash(sqlitePath))
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	store, err := NewSQLiteStore(sqlDB)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	if err := RunMigrations(ctx, sqlDB, migrationsDir); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return store, nil
}

func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("apply sqlite pragma %q: %w", stmt, err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func toNullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func fromNullInt(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func toNullBool(p *bool) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	if *p {
		return sql.NullInt64{Int64: 1, Valid: true}
	}
	return sql.NullInt64{Int64: 0, Valid: true}
}

func fromNullBool(n sql.NullInt64) *bool {
	if !n.Valid {
		return nil
	}
	v := n.Int64 != 0
	return &v
}

// GetProfile returns the stored profile with its mood log. A user with no
// profile row yields an empty profile, not an error.
func (s *SQLiteStore) GetProfile(ctx context.Context, userID string) (*services.Profile, error) {
	var points, game, streak, level, wellness, initial sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT total_points, game_points, streak, level, wellness_score, has_completed_initial_assessment
		FROM profiles WHERE user_id = ?`, userID).Scan(&points, &game, &streak, &level, &wellness, &initial)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("select profile: %w", err)
	}
	p := &services.Profile{
		TotalPoints:                   fromNullInt(points),
		GamePoints:                    fromNullInt(game),
		Streak:                        fromNullInt(streak),
		Level:                         fromNullInt(level),
		WellnessScore:                 fromNullInt(wellness),
		HasCompletedInitialAssessment: fromNullBool(initial),
	}

	rows, err := s.db.QueryContext(ctx, `SELECT mood, recorded_at FROM mood_entries WHERE user_id = ? ORDER BY recorded_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("select moods: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var m services.MoodEntry
		if err := rows.Scan(&m.Mood, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan mood: %w", err)
		}
		p.Moods = append(p.Moods, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate moods: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) UpsertProfile(ctx context.Context, userID string, p api.ProfileUpdate) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO profiles(user_id, total_points, game_points, streak, level, wellness_score, has_completed_initial_assessment, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			total_points = excluded.total_points,
			game_points = excluded.game_points,
			streak = excluded.streak,
			level = excluded.level,
			wellness_score = excluded.wellness_score,
			has_completed_initial_assessment = excluded.has_completed_initial_assessment,
			updated_at = excluded.updated_at`,
		userID, toNullInt(p.TotalPoints), toNullInt(p.GamePoints), toNullInt(p.Streak), toNullInt(p.Level),
		toNullInt(p.WellnessScore), toNullBool(p.HasCompletedInitialAssessment), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

func (s *SQLiteStore) AddMood(ctx context.Context, userID string, m services.MoodEntry) error {
	if _, err := s.db.ExecContext(ctx, `INSERT INTO mood_entries(user_id, mood, recorded_at) VALUES (?, ?, ?)`,
		userID, m.Mood, m.Timestamp.UTC()); err != nil {
		return fmt.Errorf("insert mood: %w", err)
	}
	return nil
}

// AppendAssessment inserts a new record. Reusing an id is an error; records
// are never overwritten.
func (s *SQLiteStore) AppendAssessment(ctx context.Context, rec *services.AssessmentRecord) error {
	responses, err := json.Marshal(rec.Responses)
	if err != nil {
		return fmt.Errorf("encode responses: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO assessments(id, user_id, instrument_id, responses, score, interpretation, level, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.InstrumentID, string(responses), rec.Score, rec.Interpretation, rec.Level, rec.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert assessment: %w", err)
	}
	return nil
}

const assessmentColumns = `id, user_id, instrument_id, responses, score, interpretation, level, created_at`

func (s *SQLiteStore) ListAssessments(ctx context.Context, userID string) ([]*services.AssessmentRecord, error) {
	return s.queryAssessments(ctx, `SELECT `+assessmentColumns+` FROM assessments WHERE user_id = ? ORDER BY created_at, rowid`, userID)
}

func (s *SQLiteStore) ListAssessmentsByInstrument(ctx context.Context, instrumentID string) ([]*services.AssessmentRecord, error) {
	return s.queryAssessments(ctx, `SELECT `+assessmentColumns+` FROM assessments WHERE instrument_id = ? ORDER BY created_at, rowid`, instrumentID)
}

func (s *SQLiteStore) queryAssessments(ctx context.Context, query string, arg string) ([]*services.AssessmentRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("select assessments: %w", err)
	}
	defer rows.Close()
	out := make([]*services.AssessmentRecord, 0)
	for rows.Next() {
		var (
			rec       services.AssessmentRecord
			responses string
		)
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.InstrumentID, &responses, &rec.Score, &rec.Interpretation, &rec.Level, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan assessment: %w", err)
		}
		if err := json.Unmarshal([]byte(responses), &rec.Responses); err != nil {
			return nil, fmt.Errorf("decode responses of %s: %w", rec.ID, err)
		}
		rec.CreatedAt = rec.CreatedAt.UTC()
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assessments: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) CompleteResource(ctx context.Context, userID, resourceID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO resource_completions(user_id, resource_id, completed, completed_at) VALUES (?, ?, 1, ?)
		ON CONFLICT(user_id, resource_id) DO UPDATE SET completed = 1, completed_at = excluded.completed_at`,
		userID, resourceID, at.UTC())
	if err != nil {
		return fmt.Errorf("upsert resource completion: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CountCompletedResources(ctx context.Context, userID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM resource_completions WHERE user_id = ? AND completed = 1`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count resources: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) AddCommunityPost(ctx context.Context, userID, postID string, at time.Time) error {
	if _, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO community_posts(id, user_id, created_at) VALUES (?, ?, ?)`,
		postID, userID, at.UTC()); err != nil {
		return fmt.Errorf("insert community post: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CountCommunityPosts(ctx context.Context, userID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM community_posts WHERE user_id = ?`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count community posts: %w", err)
	}
	return n, nil
}
