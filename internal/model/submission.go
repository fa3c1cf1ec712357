package model

import (
	"encoding/json"

	"github.com/rotisserie/eris"
)

// SubmitterType is the independence axis: each verification cycle needs one
// submission per role, from distinct households/wards.
type SubmitterType string

const (
	SubmitterHousehold SubmitterType = "HOUSEHOLD"
	SubmitterPeer      SubmitterType = "PEER"
	SubmitterAuditor   SubmitterType = "AUDITOR"
)

// SubmitterTypes lists the three roles a complete cycle requires.
var SubmitterTypes = []SubmitterType{SubmitterHousehold, SubmitterPeer, SubmitterAuditor}

// Valid reports whether t is one of the declared roles.
func (t SubmitterType) Valid() bool {
	switch t {
	case SubmitterHousehold, SubmitterPeer, SubmitterAuditor:
		return true
	}
	return false
}

// Coordinates is a WGS84 point.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Submission is one party's independent report for a facility.
type Submission struct {
	ID            string        `json:"id"`
	FacilityID    string        `json:"facilityId"`
	SubmitterType SubmitterType `json:"submitterType"`
	Score         int           `json:"score"`
	Checklist     Checklist     `json:"checklist"`
	Features      []string      `json:"features"`
	Discrepancies []string      `json:"discrepancies"`
	Location      *Coordinates  `json:"location,omitempty"` // submitter ward, used for independence checks
}

// UnmarshalJSON rejects a submission whose checklist key is absent entirely;
// the checklist's own decoder enforces per-field presence.
func (s *Submission) UnmarshalJSON(data []byte) error {
	type alias Submission
	aux := struct {
		*alias
		Checklist *Checklist `json:"checklist"`
	}{alias: (*alias)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Checklist == nil {
		return eris.New("model: submission missing checklist")
	}
	s.Checklist = *aux.Checklist
	return nil
}

// Validate checks score bounds and role membership.
func (s *Submission) Validate() error {
	if s.FacilityID == "" {
		return eris.New("model: submission missing facilityId")
	}
	if !s.SubmitterType.Valid() {
		return eris.Errorf("model: invalid submitterType %q", s.SubmitterType)
	}
	if s.Score < 0 || s.Score > 100 {
		return eris.Errorf("model: submission score %d out of range [0,100]", s.Score)
	}
	return nil
}
