package insights

import (
	"context"
	"errors"
	"sort"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/demandcast/backend/internal/models"
	"github.com/demandcast/backend/internal/rates"
)

var ErrNoSalesDimension = errors.New("dataset has no salesperson dimension")

const DefaultLimit = 5

// Entry is one ranked name with its aggregates: total quantity, total
// monetary value converted to base currency, and distinct document count.
type Entry struct {
	Name      string          `json:"name"`
	Quantity  float64         `json:"quantity"`
	Value     decimal.Decimal `json:"value"`
	Documents int             `json:"documents"`
}

// Ranking carries the same entries ordered two ways.
type Ranking struct {
	ByQuantity []Entry `json:"by_quantity"`
	ByValue    []Entry `json:"by_value"`
}

// Service computes top-N standings over a record set. Money is summed as
// decimals after per-currency conversion through the rates provider.
type Service struct {
	Rates  rates.Provider
	Logger zerolog.Logger
}

type bucket struct {
	quantity float64
	value    decimal.Decimal
	docs     map[string]struct{}
}

func (s Service) aggregate(ctx context.Context, records []models.TransactionRecord, keyOf func(models.TransactionRecord) string) ([]Entry, error) {
	rateCache := map[string]decimal.Decimal{}
	rateFor := func(currency string) (decimal.Decimal, error) {
		if r, ok := rateCache[currency]; ok {
			return r, nil
		}
		r, err := s.Rates.Rate(ctx, currency)
		if err != nil {
			return decimal.Decimal{}, err
		}
		d := decimal.NewFromFloat(r)
		rateCache[currency] = d
		return d, nil
	}

	buckets := map[string]*bucket{}
	for _, r := range records {
		name := keyOf(r)
		if name == "" {
			continue
		}
		b, ok := buckets[name]
		if !ok {
			b = &bucket{docs: map[string]struct{}{}}
			buckets[name] = b
		}
		rate, err := rateFor(r.Currency)
		if err != nil {
			return nil, err
		}
		b.quantity += r.Quantity
		b.value = b.value.Add(r.Amount.Mul(rate))
		if r.DocumentNumber != "" {
			b.docs[r.DocumentNumber] = struct{}{}
		}
	}

	entries := make([]Entry, 0, len(buckets))
	for name, b := range buckets {
		entries = append(entries, Entry{
			Name:      name,
			Quantity:  b.quantity,
			Value:     b.value,
			Documents: len(b.docs),
		})
	}
	return entries, nil
}

func clampLimit(limit, n int) int {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > n {
		limit = n
	}
	return limit
}

func topBy(entries []Entry, limit int, less func(a, b Entry) bool) []Entry {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if less(a, b) {
			return true
		}
		if less(b, a) {
			return false
		}
		return a.Name < b.Name
	})
	return sorted[:clampLimit(limit, len(sorted))]
}

func byQuantityDesc(a, b Entry) bool  { return a.Quantity > b.Quantity }
func byValueDesc(a, b Entry) bool     { return a.Value.Cmp(b.Value) > 0 }
func byDocumentsDesc(a, b Entry) bool { return a.Documents > b.Documents }

// TopCustomers ranks customers by total quantity and by converted value.
func (s Service) TopCustomers(ctx context.Context, records []models.TransactionRecord, limit int) (Ranking, error) {
	entries, err := s.aggregate(ctx, records, func(r models.TransactionRecord) string { return r.CustomerName })
	if err != nil {
		return Ranking{}, err
	}
	return Ranking{
		ByQuantity: topBy(entries, limit, byQuantityDesc),
		ByValue:    topBy(entries, limit, byValueDesc),
	}, nil
}

// TopSalespeople ranks salespeople the same way; it needs the triplet-scheme
// salesperson dimension.
func (s Service) TopSalespeople(ctx context.Context, records []models.TransactionRecord, limit int) (Ranking, error) {
	entries, err := s.aggregate(ctx, records, func(r models.TransactionRecord) string { return r.SalesName })
	if err != nil {
		return Ranking{}, err
	}
	if len(entries) == 0 {
		return Ranking{}, ErrNoSalesDimension
	}
	return Ranking{
		ByQuantity: topBy(entries, limit, byQuantityDesc),
		ByValue:    topBy(entries, limit, byValueDesc),
	}, nil
}

// TopItems ranks items by total quantity sold.
func (s Service) TopItems(ctx context.Context, records []models.TransactionRecord, limit int) ([]Entry, error) {
	entries, err := s.aggregate(ctx, records, func(r models.TransactionRecord) string { return r.ItemName })
	if err != nil {
		return nil, err
	}
	return topBy(entries, limit, byQuantityDesc), nil
}

// TopCities ranks cities by how many distinct documents were issued there.
func (s Service) TopCities(ctx context.Context, records []models.TransactionRecord, limit int) ([]Entry, error) {
	entries, err := s.aggregate(ctx, records, func(r models.TransactionRecord) string { return r.City })
	if err != nil {
		return nil, err
	}
	return topBy(entries, limit, byDocumentsDesc), nil
}
