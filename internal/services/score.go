package services

import "sort"

// ResponseSet maps a zero-based item index to the selected scale value.
type ResponseSet map[int]int

// EffectiveValue returns the value an item contributes to the total.
// Reverse-scored items contribute scaleMax - raw.
func EffectiveValue(in *Instrument, item, raw int) int {
	if in.IsReverse(item) {
		return in.ScaleMax - raw
	}
	return raw
}

// Score totals a complete response set. Missing items fail with
// *IncompleteResponseError and out-of-scale values with
// *InvalidResponseError; neither is ever treated as zero or clamped.
func Score(in *Instrument, responses ResponseSet) (int, error) {
	if err := ValidateResponses(in, responses); err != nil {
		return 0, err
	}
	total := 0
	// iterate by item index so the map's order never matters
	for i := 0; i < in.ItemCount(); i++ {
		total += EffectiveValue(in, i, responses[i])
	}
	return total, nil
}

// ValidateResponses checks coverage and bounds without scoring.
func ValidateResponses(in *Instrument, responses ResponseSet) error {
	extra := make([]int, 0)
	for idx := range responses {
		if idx < 0 || idx >= in.ItemCount() {
			extra = append(extra, idx)
		}
	}
	if len(extra) > 0 {
		sort.Ints(extra)
		return &InvalidResponseError{InstrumentID: in.ID, Item: extra[0], Value: responses[extra[0]], Reason: "instrument has no such item"}
	}
	var missing []int
	for i := 0; i < in.ItemCount(); i++ {
		v, ok := responses[i]
		if !ok {
			missing = append(missing, i)
			continue
		}
		if v < in.ScaleMin || v > in.ScaleMax {
			return &InvalidResponseError{InstrumentID: in.ID, Item: i, Value: v, Reason: "outside response scale"}
		}
	}
	if len(missing) > 0 {
		return &IncompleteResponseError{InstrumentID: in.ID, Missing: missing}
	}
	return nil
}
