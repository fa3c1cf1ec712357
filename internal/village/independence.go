package village

import (
	"math"

	"github.com/twpayne/go-geom"

	"github.com/sansure/trust-cli/internal/model"
)

// MinSeparationMeters is the minimum pairwise distance between submitter
// locations for a cycle to count as geographically independent. Submitters
// standing in the same courtyard are a collusion signal, not three
// independent observations.
const MinSeparationMeters = 25.0

const earthRadiusMeters = 6371000.0

// Independence is the outcome of the geographic check on one cycle.
type Independence struct {
	Checked      bool    `json:"checked"`
	Confirmed    bool    `json:"confirmed"`
	MinDistanceM float64 `json:"min_distance_m"`
}

// CheckIndependence measures pairwise separation between submitter
// locations. Cycles where any submission lacks coordinates are reported as
// unchecked rather than failed.
func CheckIndependence(subs []model.Submission) Independence {
	points := make([]*geom.Point, 0, len(subs))
	for _, s := range subs {
		if s.Location == nil {
			return Independence{Checked: false}
		}
		points = append(points, geom.NewPointFlat(geom.XY, []float64{s.Location.Lng, s.Location.Lat}).SetSRID(4326))
	}
	if len(points) < 2 {
		return Independence{Checked: false}
	}

	minDist := math.Inf(1)
	for i := 0; i < len(points); i++ {
		for j := i + 1; j < len(points); j++ {
			if d := haversine(points[i], points[j]); d < minDist {
				minDist = d
			}
		}
	}

	return Independence{
		Checked:      true,
		Confirmed:    minDist >= MinSeparationMeters,
		MinDistanceM: math.Round(minDist*100) / 100,
	}
}

// haversine returns the great-circle distance in meters between two
// lng/lat points.
func haversine(a, b *geom.Point) float64 {
	lng1, lat1 := a.X()*math.Pi/180, a.Y()*math.Pi/180
	lng2, lat2 := b.X()*math.Pi/180, b.Y()*math.Pi/180

	dLat := lat2 - lat1
	dLng := lng2 - lng1

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}
