package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterpretBoundaries(t *testing.T) {
	reg := testRegistry(t)
	cases := []struct {
		instrument string
		score      int
		label      string
	}{
		{"phq9", 0, "Minimal depression"},
		{"phq9", 4, "Minimal depression"},
		{"phq9", 5, "Mild depression"},
		{"phq9", 9, "Mild depression"},
		{"phq9", 10, "Moderate depression"},
		{"phq9", 14, "Moderate depression"},
		{"phq9", 15, "Moderately severe depression"},
		{"phq9", 19, "Moderately severe depression"},
		{"phq9", 20, "Severe depression"},
		{"phq9", 27, "Severe depression"},

		{"gad7", 4, "Minimal anxiety"},
		{"gad7", 5, "Mild anxiety"},
		{"gad7", 9, "Mild anxiety"},
		{"gad7", 10, "Moderate anxiety"},
		{"gad7", 14, "Moderate anxiety"},
		{"gad7", 15, "Severe anxiety"},
		{"gad7", 21, "Severe anxiety"},

		{"pcl5", 19, "Minimal PTSD symptoms"},
		{"pcl5", 20, "Mild PTSD symptoms"},
		{"pcl5", 36, "Mild PTSD symptoms"},
		{"pcl5", 37, "Moderate PTSD symptoms"},
		{"pcl5", 52, "Moderate PTSD symptoms"},
		{"pcl5", 53, "Moderately severe PTSD symptoms"},
		{"pcl5", 68, "Moderately severe PTSD symptoms"},
		{"pcl5", 69, "Severe PTSD symptoms"},

		{"stress", 12, "Low stress"},
		{"stress", 13, "Low stress"},
		{"stress", 14, "Moderate stress"},
		{"stress", 26, "Moderate stress"},
		{"stress", 27, "High stress"},
		{"stress", 40, "High stress"},

		{"wellness", 25, "Excellent wellbeing"},
		{"wellness", 20, "Excellent wellbeing"},
		{"wellness", 19, "Good wellbeing"},
		{"wellness", 13, "Good wellbeing"},
		{"wellness", 12, "Moderate wellbeing"},
		{"wellness", 8, "Moderate wellbeing"},
		{"wellness", 7, "Poor wellbeing"},
		{"wellness", 0, "Poor wellbeing"},

		{"sleep", 5, "Good sleep quality"},
		{"sleep", 6, "Moderate sleep quality"},
		{"sleep", 10, "Moderate sleep quality"},
		{"sleep", 11, "Poor sleep quality"},
	}
	for _, c := range cases {
		in, err := reg.Get(c.instrument)
		require.NoError(t, err)
		got, err := InterpretLabel(in, c.score)
		require.NoError(t, err, "%s score %d", c.instrument, c.score)
		assert.Equal(t, c.label, got, "%s score %d", c.instrument, c.score)
	}
}

// Every score in range maps to exactly one band, and bands appear in table
// order as the score moves in the table's direction.
func TestInterpretPartitionsRange(t *testing.T) {
	reg := testRegistry(t)
	for _, in := range reg.List() {
		position := map[string]int{}
		for i, b := range in.Bands {
			position[b.Label] = i
		}
		prev := -1
		step, start, end := 1, in.MinScore(), in.MaxScore()
		if in.Direction == Descending {
			step, start, end = -1, in.MaxScore(), in.MinScore()
		}
		seen := map[string]bool{}
		for s := start; ; s += step {
			b, err := Interpret(in, s)
			require.NoError(t, err, "%s score %d", in.ID, s)
			pos := position[b.Label]
			require.GreaterOrEqual(t, pos, prev, "%s: band order broken at %d", in.ID, s)
			require.LessOrEqual(t, pos, prev+1, "%s: band skipped at %d", in.ID, s)
			prev = pos
			seen[b.Label] = true
			if s == end {
				break
			}
		}
		assert.Len(t, seen, len(in.Bands), "%s: unreachable band", in.ID)
	}
}

func TestInterpretOutOfRange(t *testing.T) {
	reg := testRegistry(t)
	in, err := reg.Get("phq9")
	require.NoError(t, err)

	for _, s := range []int{-1, 28, 100} {
		_, err := Interpret(in, s)
		var oor *ScoreOutOfRangeError
		require.True(t, errors.As(err, &oor), "score %d: got %v", s, err)
		assert.Equal(t, 0, oor.Min)
		assert.Equal(t, 27, oor.Max)
	}
}

func TestInterpretLevels(t *testing.T) {
	reg := testRegistry(t)
	in, err := reg.Get("gad7")
	require.NoError(t, err)
	b, err := Interpret(in, 12)
	require.NoError(t, err)
	assert.Equal(t, "moderate", b.Level)
}
