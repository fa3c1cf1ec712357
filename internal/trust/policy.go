package trust

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sansure/trust-cli/internal/model"
)

// Band maps an adjusted-score floor to a letter rating. Bands are evaluated
// in descending floor order; first match wins.
type Band struct {
	Floor  float64           `yaml:"floor"`
	Rating model.TrustRating `yaml:"rating"`
}

// Policy holds the rating bands and price tables. The defaults encode the
// platform's published scale; deployments can override them from YAML.
type Policy struct {
	Bands []Band `yaml:"bands"`

	// PricesInr is the dashboard credit price per rating, in INR.
	PricesInr map[model.TrustRating]int `yaml:"prices_inr"`

	// SignalPricesInr is the investor-signal price scale, constrained to
	// the [80,500] wire contract.
	SignalPricesInr map[model.TrustRating]int `yaml:"signal_prices_inr"`

	// FallbackPriceInr is used for a rating missing from the table. Should
	// be unreachable given an exhaustive band list.
	FallbackPriceInr int `yaml:"fallback_price_inr"`
}

// DefaultPolicy returns the published rating and pricing scale.
func DefaultPolicy() *Policy {
	return &Policy{
		Bands: []Band{
			{Floor: 85, Rating: model.RatingAAA},
			{Floor: 75, Rating: model.RatingAA},
			{Floor: 65, Rating: model.RatingA},
			{Floor: 55, Rating: model.RatingBBB},
			{Floor: 45, Rating: model.RatingBB},
			{Floor: 35, Rating: model.RatingB},
			{Floor: 20, Rating: model.RatingCCC},
		},
		PricesInr: map[model.TrustRating]int{
			model.RatingAAA: 1850,
			model.RatingAA:  1650,
			model.RatingA:   1400,
			model.RatingBBB: 1150,
			model.RatingBB:  900,
			model.RatingB:   650,
			model.RatingCCC: 400,
			model.RatingD:   200,
		},
		SignalPricesInr: map[model.TrustRating]int{
			model.RatingAAA: 500,
			model.RatingAA:  450,
			model.RatingA:   400,
			model.RatingBBB: 340,
			model.RatingBB:  280,
			model.RatingB:   220,
			model.RatingCCC: 150,
			model.RatingD:   80,
		},
		FallbackPriceInr: 500,
	}
}

// LoadPolicy reads a policy override from a YAML file. Sections omitted
// from the file keep their defaults.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "trust: read policy %s", path)
	}

	// The YAML has a top-level "trust" key.
	wrapper := struct {
		Trust Policy `yaml:"trust"`
	}{}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "trust: parse policy")
	}

	cfg := DefaultPolicy()
	loaded := wrapper.Trust
	if len(loaded.Bands) > 0 {
		cfg.Bands = loaded.Bands
	}
	if len(loaded.PricesInr) > 0 {
		cfg.PricesInr = loaded.PricesInr
	}
	if len(loaded.SignalPricesInr) > 0 {
		cfg.SignalPricesInr = loaded.SignalPricesInr
	}
	if loaded.FallbackPriceInr > 0 {
		cfg.FallbackPriceInr = loaded.FallbackPriceInr
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (p *Policy) validate() error {
	if len(p.Bands) == 0 {
		return eris.New("trust: policy must declare at least one band")
	}
	prev := p.Bands[0].Floor
	for i, b := range p.Bands[1:] {
		if b.Floor >= prev {
			return eris.Errorf("trust: bands must descend, band %d floor %.1f >= %.1f", i+1, b.Floor, prev)
		}
		if !b.Rating.Valid() {
			return eris.Errorf("trust: invalid rating %q in band %d", b.Rating, i+1)
		}
		prev = b.Floor
	}
	return nil
}
