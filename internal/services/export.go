package services

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"time"
)

// ExportLongCSV renders records in long format: one row per answered item,
// with the record's total and interpretation repeated on each row.
func ExportLongCSV(in *Instrument, records []*AssessmentRecord) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	_ = w.Write([]string{"record_id", "instrument_id", "item", "raw_value", "score_value", "total_score", "interpretation", "submitted_at"})
	for _, r := range records {
		for i := 0; i < in.ItemCount(); i++ {
			raw, ok := r.Responses[i]
			if !ok {
				continue
			}
			rec := []string{
				r.ID,
				r.InstrumentID,
				strconv.Itoa(i),
				strconv.Itoa(raw),
				strconv.Itoa(EffectiveValue(in, i, raw)),
				strconv.Itoa(r.Score),
				r.Interpretation,
				r.CreatedAt.UTC().Format(time.RFC3339),
			}
			if err := w.Write(rec); err != nil {
				return nil, err
			}
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// ExportScoreCSV renders one row per record with its total.
func ExportScoreCSV(records []*AssessmentRecord) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	_ = w.Write([]string{"record_id", "instrument_id", "total_score", "interpretation", "submitted_at"})
	for _, r := range records {
		if err := w.Write([]string{r.ID, r.InstrumentID, strconv.Itoa(r.Score), r.Interpretation, r.CreatedAt.UTC().Format(time.RFC3339)}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
