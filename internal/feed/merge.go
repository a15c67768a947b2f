package feed

import (
	"sort"
	"strings"
)

// Display caps.
const (
	SocialFeedCap = 20
	PhotoFeedCap  = 100
)

// Merge folds delta into existing. Items are de-duplicated by (kind, id) keeping
// the most recent timestamp; on a tie the delta copy wins. The result is sorted
// newest first, ties broken by kind then id, and truncated to limit (limit <= 0
// keeps everything). Neither input is modified.
func Merge(existing, delta []Item, limit int) []Item {
	out := make([]Item, 0, len(existing)+len(delta))
	index := make(map[itemKey]int, len(existing)+len(delta))

	add := func(it Item) {
		if i, ok := index[it.key()]; ok {
			if it.Timestamp.After(out[i].Timestamp) {
				out[i] = it
			}
			return
		}
		index[it.key()] = len(out)
		out = append(out, it)
	}
	for _, it := range delta {
		add(it)
	}
	for _, it := range existing {
		add(it)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.After(b.Timestamp)
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return strings.Compare(a.ID, b.ID) < 0
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
