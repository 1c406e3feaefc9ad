package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/soaringjerry/Mindwell/internal/middleware"
	"github.com/soaringjerry/Mindwell/internal/platform/logger"
	"github.com/soaringjerry/Mindwell/internal/services"
	"github.com/soaringjerry/Mindwell/internal/utils"
)

type Router struct {
	store       Store
	registry    *services.Registry
	assessments *services.AssessmentService
	progress    *services.ProgressService
	analytics   *services.AnalyticsService
	location    *time.Location
	log         *logger.Logger
	now         func() time.Time
}

// NewRouter builds the services over store. opts configures the progress
// aggregator; its Logger is shared by every service.
func NewRouter(store Store, registry *services.Registry, catalog *services.Catalog, opts services.ProgressOptions) *Router {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
		opts.Logger = log
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Router{
		store:       store,
		registry:    registry,
		assessments: services.NewAssessmentService(store, registry, log),
		progress:    services.NewProgressService(store, catalog, opts),
		analytics:   services.NewAnalyticsService(store, registry),
		location:    loc,
		log:         log.With("component", "api"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Register mounts every /api route behind RequireAuth. The caller wraps the
// mux with the token-parsing middleware.
func (rt *Router) Register(mux *http.ServeMux) {
	auth := func(h http.HandlerFunc) http.Handler { return middleware.RequireAuth(h) }
	mux.Handle("/api/instruments", auth(rt.handleInstruments))   // GET
	mux.Handle("/api/instruments/", auth(rt.handleInstrument))   // GET /api/instruments/{id}
	mux.Handle("/api/assessments", auth(rt.handleAssessments))   // POST, GET
	mux.Handle("/api/progress", auth(rt.handleProgress))         // GET
	mux.Handle("/api/achievements", auth(rt.handleAchievements)) // GET
	mux.Handle("/api/export", auth(rt.handleExport))             // GET
	mux.Handle("/api/metrics/alpha", auth(rt.handleAlpha))       // GET
	mux.Handle("/api/seed", auth(rt.handleSeed))                 // POST
}

// GET /api/instruments
func (rt *Router) handleInstruments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	type summary struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		ItemCount int    `json:"item_count"`
		ScaleMin  int    `json:"scale_min"`
		ScaleMax  int    `json:"scale_max"`
		MinScore  int    `json:"min_score"`
		MaxScore  int    `json:"max_score"`
	}
	list := rt.registry.List()
	out := make([]summary, 0, len(list))
	for _, in := range list {
		out = append(out, summary{ID: in.ID, Name: in.Name, ItemCount: in.ItemCount(), ScaleMin: in.ScaleMin, ScaleMax: in.ScaleMax, MinScore: in.MinScore(), MaxScore: in.MaxScore()})
	}
	writeJSON(w, http.StatusOK, map[string]any{"instruments": out})
}

// GET /api/instruments/{id}
func (rt *Router) handleInstrument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/instruments/"), "/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	in, err := rt.registry.Get(id)
	if err != nil {
		rt.writeError(w, r, services.NewNotFoundError(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, in)
}

// POST /api/assessments {instrument_id, responses: {"0": 1, ...}}
// GET  /api/assessments?instrument=phq9
func (rt *Router) handleAssessments(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserIDFromContext(r.Context())
	locale := middleware.LocaleFromContext(r.Context())
	switch r.Method {
	case http.MethodPost:
		var req struct {
			InstrumentID string               `json:"instrument_id"`
			Responses    services.ResponseSet `json:"responses"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.InstrumentID == "" {
			http.Error(w, "instrument_id required", http.StatusBadRequest)
			return
		}
		rec, err := rt.assessments.Submit(r.Context(), services.SubmitRequest{UserID: uid, InstrumentID: req.InstrumentID, Responses: req.Responses})
		if err != nil {
			rt.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"id":             rec.ID,
			"instrument_id":  rec.InstrumentID,
			"score":          rec.Score,
			"level":          rec.Level,
			"interpretation": utils.Interpretation(locale, rec.InstrumentID, rec.Level, rec.Interpretation),
			"created_at":     rec.CreatedAt,
		})
	case http.MethodGet:
		instrument := r.URL.Query().Get("instrument")
		if instrument == "" {
			http.Error(w, "instrument required", http.StatusBadRequest)
			return
		}
		history, err := rt.assessments.History(r.Context(), uid, instrument)
		if err != nil {
			rt.writeError(w, r, err)
			return
		}
		type point struct {
			Score          int       `json:"score"`
			Interpretation string    `json:"interpretation"`
			Date           time.Time `json:"date"`
		}
		points := make([]point, 0, len(history))
		for _, rec := range history {
			points = append(points, point{Score: rec.Score, Interpretation: utils.Interpretation(locale, rec.InstrumentID, rec.Level, rec.Interpretation), Date: rec.CreatedAt})
		}
		writeJSON(w, http.StatusOK, map[string]any{"instrument_id": instrument, "results": points, "trend": services.Trend(history)})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// GET /api/progress
func (rt *Router) handleProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	uid, _ := middleware.UserIDFromContext(r.Context())
	agg, err := rt.progress.Aggregate(r.Context(), uid)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	out := map[string]any{"snapshot": agg.Snapshot}
	addDegraded(out, agg.Warning)
	writeJSON(w, http.StatusOK, out)
}

// GET /api/achievements?category=consistency
func (rt *Router) handleAchievements(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	category := services.AchievementCategory(r.URL.Query().Get("category"))
	switch category {
	case "", services.CategoryConsistency, services.CategoryProgress, services.CategoryCommunity, services.CategoryLearning:
	default:
		http.Error(w, "unknown category", http.StatusBadRequest)
		return
	}
	uid, _ := middleware.UserIDFromContext(r.Context())
	states, warning, err := rt.progress.Achievements(r.Context(), uid, category)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	out := map[string]any{"achievements": states, "unlocked": services.CountUnlocked(states)}
	addDegraded(out, warning)
	writeJSON(w, http.StatusOK, out)
}

// GET /api/export?instrument=phq9 returns the caller's history of one
// instrument with one row per item; without instrument, one row per record.
func (rt *Router) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	uid, _ := middleware.UserIDFromContext(r.Context())
	instrument := r.URL.Query().Get("instrument")
	var (
		body []byte
		err  error
		name = "assessments.csv"
	)
	if instrument == "" {
		var records []*services.AssessmentRecord
		records, err = rt.store.ListAssessments(r.Context(), uid)
		if err == nil {
			body, err = services.ExportScoreCSV(records)
		}
	} else {
		var (
			in      *services.Instrument
			history []*services.AssessmentRecord
		)
		history, err = rt.assessments.History(r.Context(), uid, instrument)
		if err == nil {
			in, err = rt.registry.Get(instrument)
		}
		if err == nil {
			body, err = services.ExportLongCSV(in, history)
			name = instrument + "_long.csv"
		}
	}
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename="+name)
	_, _ = w.Write(body)
}

// GET /api/metrics/alpha?instrument=phq9
func (rt *Router) handleAlpha(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	instrument := r.URL.Query().Get("instrument")
	if instrument == "" {
		http.Error(w, "instrument required", http.StatusBadRequest)
		return
	}
	sum, err := rt.analytics.Summary(r.Context(), instrument)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// POST /api/seed fills the caller's external signals with demo data: a
// profile, ten days of morning mood entries, some resources and one post.
func (rt *Router) handleSeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	uid, _ := middleware.UserIDFromContext(r.Context())
	ctx := r.Context()
	points, game, streak, level, wellness := 120, 30, 8, 3, 72
	done := true
	if err := rt.store.UpsertProfile(ctx, uid, ProfileUpdate{
		TotalPoints: &points, GamePoints: &game, Streak: &streak, Level: &level,
		WellnessScore: &wellness, HasCompletedInitialAssessment: &done,
	}); err != nil {
		rt.writeError(w, r, err)
		return
	}
	today := rt.now().In(rt.location)
	base := time.Date(today.Year(), today.Month(), today.Day(), 7, 30, 0, 0, rt.location)
	for i := 0; i < 10; i++ {
		m := services.MoodEntry{Mood: 1 + (i+2)%5, Timestamp: base.AddDate(0, 0, -i).UTC()}
		if err := rt.store.AddMood(ctx, uid, m); err != nil {
			rt.writeError(w, r, err)
			return
		}
	}
	for i := 0; i < 3; i++ {
		if err := rt.store.CompleteResource(ctx, uid, "resource-"+uuid.NewString()[:8], rt.now()); err != nil {
			rt.writeError(w, r, err)
			return
		}
	}
	if err := rt.store.AddCommunityPost(ctx, uid, uuid.NewString(), rt.now()); err != nil {
		rt.writeError(w, r, err)
		return
	}
	rt.log.Info("seeded demo data", "user_id", uid)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func addDegraded(out map[string]any, warning *services.AggregationDegradedWarning) {
	out["degraded"] = warning != nil
	out["resources_estimated"] = warning.Has(services.SourceResources)
	if warning != nil {
		out["degraded_sources"] = warning.Sources
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain and service errors onto HTTP statuses. Anything
// unrecognised is logged and reported as a bare 500.
func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		incomplete *services.IncompleteResponseError
		invalid    *services.InvalidResponseError
		outOfRange *services.ScoreOutOfRangeError
	)
	switch {
	case errors.As(err, &incomplete):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "incomplete_response", "message": err.Error(), "missing": incomplete.Missing})
		return
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_response", "message": err.Error(), "item": invalid.Item})
		return
	case errors.As(err, &outOfRange):
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal", "message": "scoring failed"})
		return
	}
	if se, ok := services.AsServiceError(err); ok {
		status := http.StatusInternalServerError
		switch se.Code {
		case services.ErrorInvalid:
			status = http.StatusBadRequest
		case services.ErrorNotFound:
			status = http.StatusNotFound
		case services.ErrorUnauthorized:
			status = http.StatusUnauthorized
		}
		writeJSON(w, status, map[string]any{"error": string(se.Code), "message": se.Message})
		return
	}
	rt.log.Error("request failed", "path", r.URL.Path, "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal", "message": "internal error"})
}
