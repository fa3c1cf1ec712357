package model

import "github.com/rotisserie/eris"

// HistoryWindow is the retention window for daily hygiene scores.
const HistoryWindow = 90

// odfDiscrepancyCeiling is the measured score below which an official ODF
// certification is treated as contradicted.
const odfDiscrepancyCeiling = 50

// Village is the aggregate a score history belongs to. The village owns its
// window; engines only read it and return derived values.
type Village struct {
	ID                  string      `json:"id"`
	Name                string      `json:"name"`
	District            string      `json:"district"`
	Population          int         `json:"population"`
	Location            Coordinates `json:"location"`
	HygieneScoreHistory []float64   `json:"hygieneScoreHistory"`
	LastScore           float64     `json:"lastScore"`
	VolatilityIndex     float64     `json:"volatilityIndex"`
	CasesPrevented      int         `json:"casesPrevented"`
	GirlsAttendance     float64     `json:"girlsAttendance"`
	ODFStatus           bool        `json:"odfStatus"`
}

// Validate checks the invariants a village must satisfy before it enters
// the registry.
func (v *Village) Validate() error {
	if v.ID == "" {
		return eris.New("model: village missing id")
	}
	if v.Population <= 0 {
		return eris.Errorf("model: village %s population must be positive", v.ID)
	}
	for i, s := range v.HygieneScoreHistory {
		if s < 0 || s > 100 {
			return eris.Errorf("model: village %s history[%d] score %.1f out of range [0,100]", v.ID, i, s)
		}
	}
	return nil
}

// AppendScore adds one daily score to the history, evicting the oldest
// entry beyond the retention window. The history never shrinks otherwise.
func (v *Village) AppendScore(score float64) error {
	if score < 0 || score > 100 {
		return eris.Errorf("model: score %.1f out of range [0,100]", score)
	}
	v.HygieneScoreHistory = append(v.HygieneScoreHistory, score)
	if len(v.HygieneScoreHistory) > HistoryWindow {
		v.HygieneScoreHistory = v.HygieneScoreHistory[len(v.HygieneScoreHistory)-HistoryWindow:]
	}
	v.LastScore = score
	return nil
}

// AverageScore returns the mean of the history window, or 0 for an empty one.
func (v *Village) AverageScore() float64 {
	if len(v.HygieneScoreHistory) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range v.HygieneScoreHistory {
		sum += s
	}
	return sum / float64(len(v.HygieneScoreHistory))
}

// ODFDiscrepancy reports the case where the village holds an official
// open-defecation-free certification but its measured score stays low.
func (v *Village) ODFDiscrepancy() bool {
	return v.ODFStatus && v.LastScore < odfDiscrepancyCeiling
}
