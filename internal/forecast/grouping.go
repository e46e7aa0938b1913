package forecast

import (
	"errors"
	"fmt"
	"sort"

	"github.com/demandcast/backend/internal/models"
)

var ErrMissingDimensions = errors.New("records carry no customer/item dimensions")

// SchemeFor returns the grouping scheme for a dataset: triplet when the
// salesperson dimension was ingested, pair otherwise. The choice is made once
// at pipeline entry and carried as a value from then on.
func SchemeFor(hasSalesDimension bool) models.GroupingScheme {
	if hasSalesDimension {
		return models.SchemeTriplet
	}
	return models.SchemePair
}

// ValidateDimensions guards the pipeline entry: a record set in which no row
// carries a customer or item value is indistinguishable from a table whose
// dimension columns never existed.
func ValidateDimensions(records []models.TransactionRecord, scheme models.GroupingScheme) error {
	if len(records) == 0 {
		return nil
	}
	var hasCustomer, hasItem, hasSales bool
	for _, r := range records {
		if r.CustomerName != "" {
			hasCustomer = true
		}
		if r.ItemName != "" {
			hasItem = true
		}
		if r.SalesName != "" {
			hasSales = true
		}
		if hasCustomer && hasItem && hasSales {
			break
		}
	}
	if !hasCustomer || !hasItem {
		return ErrMissingDimensions
	}
	if scheme == models.SchemeTriplet && !hasSales {
		return fmt.Errorf("%w: salesperson dimension empty under triplet grouping", ErrMissingDimensions)
	}
	return nil
}

func keyFor(r models.TransactionRecord, scheme models.GroupingScheme) models.GroupKey {
	k := models.GroupKey{CustomerName: r.CustomerName, ItemName: r.ItemName}
	if scheme == models.SchemeTriplet {
		k.SalesName = r.SalesName
	}
	return k
}

// GroupKeys enumerates the distinct group keys under scheme, sorted
// lexicographically by salesperson, customer, item. Sorting makes group order
// stable across runs, not just within one.
func GroupKeys(records []models.TransactionRecord, scheme models.GroupingScheme) []models.GroupKey {
	seen := map[models.GroupKey]struct{}{}
	var keys []models.GroupKey
	for _, r := range records {
		k := keyFor(r, scheme)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.SalesName != b.SalesName {
			return a.SalesName < b.SalesName
		}
		if a.CustomerName != b.CustomerName {
			return a.CustomerName < b.CustomerName
		}
		return a.ItemName < b.ItemName
	})
	return keys
}

// FilterGroup returns the records belonging to one group key, preserving
// input order.
func FilterGroup(records []models.TransactionRecord, scheme models.GroupingScheme, key models.GroupKey) []models.TransactionRecord {
	var out []models.TransactionRecord
	for _, r := range records {
		if keyFor(r, scheme) == key {
			out = append(out, r)
		}
	}
	return out
}
