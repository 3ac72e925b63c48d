package collector

import (
	"fmt"
	"strings"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/fergl/geoclust/model"
)

// Dedup collapses duplicate records in two passes.
//
// Pass 1 collapses by identity: records sharing an ID keep the last-seen
// candidate. Pass 2 collapses by a fuzzy composite key of the normalized
// name and the coordinates rounded to two decimals (~1 km tolerance),
// keeping whichever candidate has the larger population. The operation is
// idempotent and the population winner is independent of arrival order.
func Dedup(records []*model.Record) []*model.Record {
	if len(records) == 0 {
		return nil
	}

	// Pass 1: identity, last-seen wins. The bitmap tracks IDs already seen
	// so repeats update in place without disturbing first-seen order.
	seen := roaring64.New()
	byID := make(map[int64]int, len(records))
	unique := make([]*model.Record, 0, len(records))
	for _, r := range records {
		if r == nil {
			continue
		}
		id := uint64(r.ID) //nolint:gosec // upstream IDs are non-negative
		if seen.CheckedAdd(id) {
			byID[r.ID] = len(unique)
			unique = append(unique, r)
			continue
		}
		unique[byID[r.ID]] = r
	}

	// Pass 2: fuzzy composite key, larger population wins, ties keep the
	// incumbent.
	byKey := make(map[string]int, len(unique))
	out := make([]*model.Record, 0, len(unique))
	for _, r := range unique {
		key := compositeKey(r)
		idx, ok := byKey[key]
		if !ok {
			byKey[key] = len(out)
			out = append(out, r)
			continue
		}
		if r.Population > out[idx].Population {
			out[idx] = r
		}
	}
	return out
}

// compositeKey is the fuzzy-match identity for records lacking a reliable
// shared ID: lowercased trimmed name plus coordinates rounded to 2 decimals.
func compositeKey(r *model.Record) string {
	name := strings.ToLower(strings.TrimSpace(r.Name))
	return fmt.Sprintf("%s|%.2f|%.2f", name, r.Latitude, r.Longitude)
}
