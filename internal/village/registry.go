// Package village maintains the in-memory registry of villages the engine
// scores against. Village state is rebuilt from seed files and mint events;
// the ledger stays the system of record.
package village

import (
	"os"
	"sort"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sansure/trust-cli/internal/model"
)

// ErrNotFound is returned when a village ID is not registered.
var ErrNotFound = eris.New("village: not found")

// Registry holds villages keyed by ID.
type Registry struct {
	mu       sync.RWMutex
	villages map[string]*model.Village
}

func NewRegistry() *Registry {
	return &Registry{villages: make(map[string]*model.Village)}
}

type seedFile struct {
	Villages []seedVillage `yaml:"villages"`
}

type seedVillage struct {
	ID              string    `yaml:"id"`
	Name            string    `yaml:"name"`
	District        string    `yaml:"district"`
	Population      int       `yaml:"population"`
	Lat             float64   `yaml:"lat"`
	Lng             float64   `yaml:"lng"`
	ScoreHistory    []float64 `yaml:"scoreHistory"`
	GirlsAttendance float64   `yaml:"girlsAttendance"`
	ODFStatus       bool      `yaml:"odfStatus"`
}

// LoadSeed reads a villages YAML file and registers every entry. Existing
// entries with the same ID are replaced.
func LoadSeed(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "village: read seed %s", path)
	}

	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, eris.Wrapf(err, "village: parse seed %s", path)
	}
	if len(seed.Villages) == 0 {
		return nil, eris.Errorf("village: seed %s contains no villages", path)
	}

	r := NewRegistry()
	for _, sv := range seed.Villages {
		v := &model.Village{
			ID:              sv.ID,
			Name:            sv.Name,
			District:        sv.District,
			Population:      sv.Population,
			Location:        model.Coordinates{Lat: sv.Lat, Lng: sv.Lng},
			GirlsAttendance: sv.GirlsAttendance,
			ODFStatus:       sv.ODFStatus,
		}
		for _, score := range sv.ScoreHistory {
			if err := v.AppendScore(score); err != nil {
				return nil, eris.Wrapf(err, "village: seed entry %q", sv.ID)
			}
		}
		if err := v.Validate(); err != nil {
			return nil, eris.Wrapf(err, "village: seed entry %q", sv.ID)
		}
		if err := r.Register(v); err != nil {
			return nil, err
		}
	}

	zap.L().Info("village seed loaded",
		zap.String("path", path),
		zap.Int("villages", len(seed.Villages)))
	return r, nil
}

// Register adds or replaces a village.
func (r *Registry) Register(v *model.Village) error {
	if err := v.Validate(); err != nil {
		return eris.Wrap(err, "village: register")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.villages[v.ID] = v
	return nil
}

// Get returns a copy of the village so callers cannot mutate registry
// state without going through RecordScore.
func (r *Registry) Get(id string) (model.Village, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.villages[id]
	if !ok {
		return model.Village{}, eris.Wrapf(ErrNotFound, "id %q", id)
	}
	return cloneVillage(v), nil
}

// List returns all villages sorted by ID.
func (r *Registry) List() []model.Village {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Village, 0, len(r.villages))
	for _, v := range r.villages {
		out = append(out, cloneVillage(v))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RecordScore appends a consensus score to the village history. Called when
// an adjudicated cycle mints, never on hold or reject.
func (r *Registry) RecordScore(id string, score float64) (model.Village, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.villages[id]
	if !ok {
		return model.Village{}, eris.Wrapf(ErrNotFound, "id %q", id)
	}
	if err := v.AppendScore(score); err != nil {
		return model.Village{}, err
	}
	return cloneVillage(v), nil
}

// SetCasesPrevented stores the latest impact estimate on the village.
func (r *Registry) SetCasesPrevented(id string, cases int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.villages[id]
	if !ok {
		return eris.Wrapf(ErrNotFound, "id %q", id)
	}
	v.CasesPrevented = cases
	return nil
}

// ODFDiscrepancies returns villages whose declared open-defecation-free
// status contradicts their recent scores.
func (r *Registry) ODFDiscrepancies() []model.Village {
	var out []model.Village
	for _, v := range r.List() {
		if v.ODFDiscrepancy() {
			out = append(out, v)
		}
	}
	return out
}

func cloneVillage(v *model.Village) model.Village {
	out := *v
	out.HygieneScoreHistory = append([]float64(nil), v.HygieneScoreHistory...)
	return out
}
