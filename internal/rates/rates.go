package rates

import "context"

// Provider resolves the multiplier that converts one unit of a named currency
// into base-currency units.
type Provider interface {
	Rate(ctx context.Context, currency string) (float64, error)
}

// StaticProvider serves rates from a fixed table, typically parsed from
// configuration. Unknown currencies convert at 1:1 so a stray label degrades
// a ranking instead of failing it.
type StaticProvider struct {
	Rates map[string]float64
}

func (s StaticProvider) Rate(_ context.Context, currency string) (float64, error) {
	if r, ok := s.Rates[currency]; ok && r > 0 {
		return r, nil
	}
	return 1, nil
}
