package services

import (
	"context"
	"fmt"
	"sort"
)

type AnalyticsStore interface {
	ListAssessmentsByInstrument(ctx context.Context, instrumentID string) ([]*AssessmentRecord, error)
}

type AnalyticsService struct {
	store    AnalyticsStore
	registry *Registry
}

type AnalyticsItem struct {
	Index     int    `json:"index"`
	Text      string `json:"text"`
	Reverse   bool   `json:"reverse_scored"`
	Histogram []int  `json:"histogram"`
	Total     int    `json:"total"`
}

type AnalyticsTimeseries struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type AnalyticsSummary struct {
	InstrumentID string                `json:"instrument_id"`
	ScaleMin     int                   `json:"scale_min"`
	ScaleMax     int                   `json:"scale_max"`
	TotalRecords int                   `json:"total_records"`
	Items        []AnalyticsItem       `json:"items"`
	Bands        map[string]int        `json:"bands"`
	Timeseries   []AnalyticsTimeseries `json:"timeseries"`
	Alpha        float64               `json:"alpha"`
	N            int                   `json:"n"`
}

func NewAnalyticsService(store AnalyticsStore, registry *Registry) *AnalyticsService {
	return &AnalyticsService{store: store, registry: registry}
}

// Summary aggregates every stored record of one instrument: raw-value
// histograms per item, band distribution, submissions per day and Cronbach's
// alpha over effective values.
func (s *AnalyticsService) Summary(ctx context.Context, instrumentID string) (*AnalyticsSummary, error) {
	in, err := s.registry.Get(instrumentID)
	if err != nil {
		return nil, &ServiceError{Code: ErrorNotFound, Message: err.Error(), Err: err}
	}
	records, err := s.store.ListAssessmentsByInstrument(ctx, instrumentID)
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	items, countsByDay, bands := buildAnalyticsItems(in, records)
	matrix, n := buildAlphaMatrix(in, records)
	return &AnalyticsSummary{
		InstrumentID: in.ID,
		ScaleMin:     in.ScaleMin,
		ScaleMax:     in.ScaleMax,
		TotalRecords: len(records),
		Items:        items,
		Bands:        bands,
		Timeseries:   buildTimeseries(countsByDay),
		Alpha:        CronbachAlpha(matrix),
		N:            n,
	}, nil
}

func buildAnalyticsItems(in *Instrument, records []*AssessmentRecord) ([]AnalyticsItem, map[string]int, map[string]int) {
	width := in.ScaleMax - in.ScaleMin + 1
	items := make([]AnalyticsItem, 0, in.ItemCount())
	for i, text := range in.Items {
		items = append(items, AnalyticsItem{
			Index:     i,
			Text:      text,
			Reverse:   in.IsReverse(i),
			Histogram: make([]int, width),
		})
	}
	countsByDay := map[string]int{}
	bands := map[string]int{}
	for _, r := range records {
		for idx, v := range r.Responses {
			if idx < 0 || idx >= len(items) || v < in.ScaleMin || v > in.ScaleMax {
				continue
			}
			items[idx].Histogram[v-in.ScaleMin]++
			items[idx].Total++
		}
		if r.Level != "" {
			bands[r.Level]++
		}
		countsByDay[r.CreatedAt.UTC().Format("2006-01-02")]++
	}
	return items, countsByDay, bands
}

// buildAlphaMatrix keeps only complete response sets, in item order.
func buildAlphaMatrix(in *Instrument, records []*AssessmentRecord) ([][]float64, int) {
	matrix := make([][]float64, 0, len(records))
	for _, r := range records {
		if ValidateResponses(in, r.Responses) != nil {
			continue
		}
		row := make([]float64, 0, in.ItemCount())
		for i := 0; i < in.ItemCount(); i++ {
			row = append(row, float64(EffectiveValue(in, i, r.Responses[i])))
		}
		matrix = append(matrix, row)
	}
	return matrix, len(matrix)
}

func buildTimeseries(counts map[string]int) []AnalyticsTimeseries {
	days := make([]string, 0, len(counts))
	for d := range counts {
		days = append(days, d)
	}
	sort.Strings(days)
	out := make([]AnalyticsTimeseries, 0, len(days))
	for _, d := range days {
		out = append(out, AnalyticsTimeseries{Date: d, Count: counts[d]})
	}
	return out
}
