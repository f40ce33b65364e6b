package table

import "log/slog"

// JoinOptions controls Join.
type JoinOptions struct {
	// WarnOnMiss logs every left key without a match.
	WarnOnMiss bool
	// Strict fails with an *AmbiguousKeyError when the right table holds a
	// key more than once. Otherwise the last right row wins.
	Strict bool
}

// JoinResult summarizes a Join.
type JoinResult struct {
	Matched int
	Missed  []string // unmatched left keys, in row order
}

// Join merges, into every row of t, the columns of the row of other whose
// rightKey equals the row's leftKey. Values already present on the left row
// win. Unmatched rows are left unmodified.
func (t *Table) Join(leftKey string, other *Table, rightKey string, opts JoinOptions) (JoinResult, error) {
	var res JoinResult

	index := make(map[string]Row, other.Len())
	counts := make(map[string]int, other.Len())
	for _, r := range other.rows {
		k := r[rightKey]
		counts[k]++
		index[k] = r
	}
	if opts.Strict {
		for _, r := range other.rows {
			k := r[rightKey]
			if counts[k] > 1 {
				return res, &AmbiguousKeyError{Column: rightKey, Key: k, Count: counts[k]}
			}
		}
	}

	for _, r := range t.rows {
		k := r[leftKey]
		match, ok := index[k]
		if !ok {
			res.Missed = append(res.Missed, k)
			if opts.WarnOnMiss {
				slog.Warn("join: no match", "key_column", leftKey, "key", k)
			}
			continue
		}
		res.Matched++
		for c, v := range match {
			if _, exists := r[c]; !exists {
				r[c] = v
			}
		}
	}
	for _, c := range other.columns {
		t.addColumnName(c)
	}
	return res, nil
}
