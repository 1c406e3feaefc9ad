package services

// Interpret maps a score to the band it falls in. Scores the instrument
// cannot produce are a *ScoreOutOfRangeError.
func Interpret(in *Instrument, score int) (Band, error) {
	lo, hi := in.MinScore(), in.MaxScore()
	if score < lo || score > hi {
		return Band{}, &ScoreOutOfRangeError{InstrumentID: in.ID, Score: score, Min: lo, Max: hi}
	}
	for _, b := range in.Bands {
		if b.Bound == nil {
			return b, nil
		}
		switch in.Direction {
		case Descending:
			if score >= *b.Bound {
				return b, nil
			}
		default:
			if score <= *b.Bound {
				return b, nil
			}
		}
	}
	// unreachable for a validated registry
	return Band{}, &ScoreOutOfRangeError{InstrumentID: in.ID, Score: score, Min: lo, Max: hi}
}

// InterpretLabel is Interpret returning only the label.
func InterpretLabel(in *Instrument, score int) (string, error) {
	b, err := Interpret(in, score)
	if err != nil {
		return "", err
	}
	return b.Label, nil
}
