package services

import (
	"embed"
	"errors"
	"fmt"
	"path"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed registry/instruments.yaml
var registryFS embed.FS

// BandDirection says how a band table reads scores.
type BandDirection string

const (
	// Ascending tables treat higher scores as more severe.
	Ascending BandDirection = "ascending"
	// Descending tables treat higher scores as better.
	Descending BandDirection = "descending"
)

// Band is one severity range. Bound is the inclusive upper bound for
// ascending tables and the inclusive lower bound for descending tables.
// The last band of a table has no bound.
type Band struct {
	Bound *int   `yaml:"bound,omitempty" json:"bound,omitempty"`
	Level string `yaml:"level" json:"level"`
	Label string `yaml:"label" json:"label"`
}

// Instrument is an immutable questionnaire definition.
type Instrument struct {
	ID          string        `yaml:"id" json:"id"`
	Name        string        `yaml:"name" json:"name"`
	Description string        `yaml:"description,omitempty" json:"description,omitempty"`
	Items       []string      `yaml:"items" json:"items"`
	ScaleMin    int           `yaml:"scale_min" json:"scale_min"`
	ScaleMax    int           `yaml:"scale_max" json:"scale_max"`
	ScaleLabels []string      `yaml:"scale_labels,omitempty" json:"scale_labels,omitempty"`
	Reverse     []int         `yaml:"reverse,omitempty" json:"reverse,omitempty"`
	Direction   BandDirection `yaml:"direction" json:"direction"`
	Bands       []Band        `yaml:"bands" json:"bands"`

	reverse map[int]bool
}

// ItemCount returns the number of items.
func (in *Instrument) ItemCount() int { return len(in.Items) }

// IsReverse reports whether item i is reverse scored.
func (in *Instrument) IsReverse(i int) bool { return in.reverse[i] }

// MinScore is the lowest total any complete response set can produce.
func (in *Instrument) MinScore() int {
	total := 0
	for i := range in.Items {
		if in.reverse[i] {
			// reverse items bottom out at scaleMax - scaleMax
			continue
		}
		total += in.ScaleMin
	}
	return total
}

// MaxScore is the highest total any complete response set can produce.
func (in *Instrument) MaxScore() int {
	total := 0
	for i := range in.Items {
		if in.reverse[i] {
			total += in.ScaleMax - in.ScaleMin
			continue
		}
		total += in.ScaleMax
	}
	return total
}

// Registry holds the instruments loaded at startup. It is read-only after
// construction and safe for concurrent use.
type Registry struct {
	byID  map[string]*Instrument
	order []string
}

type registryFile struct {
	Version     int           `yaml:"version"`
	Instruments []*Instrument `yaml:"instruments"`
}

// ErrInstrumentNotFound is returned for an unknown instrument id.
var ErrInstrumentNotFound = errors.New("instrument not found")

// DefaultRegistry loads the instruments embedded in the binary.
func DefaultRegistry() (*Registry, error) {
	data, err := registryFS.ReadFile(path.Join("registry", "instruments.yaml"))
	if err != nil {
		return nil, fmt.Errorf("read embedded instruments: %w", err)
	}
	return ParseRegistry(data)
}

// ParseRegistry decodes and validates a YAML instrument list.
func ParseRegistry(data []byte) (*Registry, error) {
	var f registryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode instruments: %w", err)
	}
	return NewRegistry(f.Instruments...)
}

// NewRegistry validates the given instruments and indexes them by id.
func NewRegistry(instruments ...*Instrument) (*Registry, error) {
	r := &Registry{byID: make(map[string]*Instrument, len(instruments))}
	for _, in := range instruments {
		if in == nil {
			continue
		}
		if _, dup := r.byID[in.ID]; dup {
			return nil, fmt.Errorf("instrument %q defined twice", in.ID)
		}
		if err := in.init(); err != nil {
			return nil, err
		}
		r.byID[in.ID] = in
		r.order = append(r.order, in.ID)
	}
	return r, nil
}

// Get returns the instrument with the given id.
func (r *Registry) Get(id string) (*Instrument, error) {
	if in, ok := r.byID[id]; ok {
		return in, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInstrumentNotFound, id)
}

// List returns instruments in configuration order.
func (r *Registry) List() []*Instrument {
	out := make([]*Instrument, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

func (in *Instrument) init() error {
	if in.ID == "" {
		return errors.New("instrument id required")
	}
	if len(in.Items) == 0 {
		return fmt.Errorf("instrument %q: no items", in.ID)
	}
	if in.ScaleMax <= in.ScaleMin || in.ScaleMin < 0 {
		return fmt.Errorf("instrument %q: invalid scale [%d,%d]", in.ID, in.ScaleMin, in.ScaleMax)
	}
	in.reverse = make(map[int]bool, len(in.Reverse))
	for _, idx := range in.Reverse {
		if idx < 0 || idx >= len(in.Items) {
			return fmt.Errorf("instrument %q: reverse index %d outside items", in.ID, idx)
		}
		in.reverse[idx] = true
	}
	sort.Ints(in.Reverse)
	switch in.Direction {
	case "":
		in.Direction = Ascending
	case Ascending, Descending:
	default:
		return fmt.Errorf("instrument %q: unknown band direction %q", in.ID, in.Direction)
	}
	return in.validateBands()
}

// validateBands checks that bands are strictly monotonic, that only the last
// band is unbounded, and that every band can be reached by some valid score.
func (in *Instrument) validateBands() error {
	n := len(in.Bands)
	if n == 0 {
		return fmt.Errorf("instrument %q: no bands", in.ID)
	}
	lo, hi := in.MinScore(), in.MaxScore()
	for i, b := range in.Bands {
		if b.Label == "" {
			return fmt.Errorf("instrument %q: band %d has no label", in.ID, i)
		}
		last := i == n-1
		if last {
			if b.Bound != nil {
				return fmt.Errorf("instrument %q: last band must be unbounded", in.ID)
			}
			continue
		}
		if b.Bound == nil {
			return fmt.Errorf("instrument %q: band %d must have a bound", in.ID, i)
		}
		bound := *b.Bound
		if bound < lo || bound > hi {
			return fmt.Errorf("instrument %q: band %d bound %d outside score range [%d,%d]", in.ID, i, bound, lo, hi)
		}
		if i == 0 {
			continue
		}
		prev := *in.Bands[i-1].Bound
		if in.Direction == Ascending && bound <= prev {
			return fmt.Errorf("instrument %q: band %d bound %d not above %d", in.ID, i, bound, prev)
		}
		if in.Direction == Descending && bound >= prev {
			return fmt.Errorf("instrument %q: band %d bound %d not below %d", in.ID, i, bound, prev)
		}
	}
	if n > 1 {
		// the unbounded tail must still be reachable
		last := *in.Bands[n-2].Bound
		if in.Direction == Ascending && last >= hi {
			return fmt.Errorf("instrument %q: final band unreachable", in.ID)
		}
		if in.Direction == Descending && last <= lo {
			return fmt.Errorf("instrument %q: final band unreachable", in.ID)
		}
	}
	return nil
}
