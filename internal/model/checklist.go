package model

import (
	"encoding/json"

	"github.com/rotisserie/eris"
)

// ChecklistDimensions lists the four checklist keys in canonical order.
var ChecklistDimensions = []string{"door", "water", "clean", "toilet"}

// Checklist is a household's four-item self-report for one facility.
// Immutable once created.
type Checklist struct {
	Door   bool `json:"door"`   // structural door present
	Water  bool `json:"water"`  // water source available
	Clean  bool `json:"clean"`  // facility clean
	Toilet bool `json:"toilet"` // toilet unit present and covered
}

// Flags returns the checklist values keyed by dimension.
func (c Checklist) Flags() map[string]bool {
	return map[string]bool{
		"door":   c.Door,
		"water":  c.Water,
		"clean":  c.Clean,
		"toilet": c.Toilet,
	}
}

// Equal reports field-for-field equality with other.
func (c Checklist) Equal(other Checklist) bool {
	return c == other
}

// UnmarshalJSON rejects a checklist that omits any of the four dimensions so
// an absent flag cannot decode as a silent false.
func (c *Checklist) UnmarshalJSON(data []byte) error {
	var raw struct {
		Door   *bool `json:"door"`
		Water  *bool `json:"water"`
		Clean  *bool `json:"clean"`
		Toilet *bool `json:"toilet"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return eris.Wrap(err, "model: decode checklist")
	}
	fields := map[string]*bool{
		"door":   raw.Door,
		"water":  raw.Water,
		"clean":  raw.Clean,
		"toilet": raw.Toilet,
	}
	for _, dim := range ChecklistDimensions {
		if fields[dim] == nil {
			return eris.Errorf("model: checklist missing %q", dim)
		}
	}
	c.Door, c.Water, c.Clean, c.Toilet = *raw.Door, *raw.Water, *raw.Clean, *raw.Toilet
	return nil
}
