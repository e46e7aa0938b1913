package rates

import (
	"context"
	"testing"
)

func TestStaticProvider(t *testing.T) {
	p := StaticProvider{Rates: map[string]float64{"Rupiah": 1, "US Dollar": 16000}}

	if r, err := p.Rate(context.Background(), "US Dollar"); err != nil || r != 16000 {
		t.Fatalf("Rate(US Dollar) = %g, %v", r, err)
	}
	if r, err := p.Rate(context.Background(), "Rupiah"); err != nil || r != 1 {
		t.Fatalf("Rate(Rupiah) = %g, %v", r, err)
	}
	if r, err := p.Rate(context.Background(), "Doubloon"); err != nil || r != 1 {
		t.Fatalf("unknown currency should convert 1:1, got %g, %v", r, err)
	}
}

func TestStaticProviderIgnoresNonPositiveRates(t *testing.T) {
	p := StaticProvider{Rates: map[string]float64{"Broken": 0, "Negative": -4}}
	if r, _ := p.Rate(context.Background(), "Broken"); r != 1 {
		t.Fatalf("zero rate should fall back to 1, got %g", r)
	}
	if r, _ := p.Rate(context.Background(), "Negative"); r != 1 {
		t.Fatalf("negative rate should fall back to 1, got %g", r)
	}
}
