// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package output

import (
	"sort"
	"strings"
)

// sortKey is one parsed segment of a --sort spec.
type sortKey struct {
	key           string
	descending    bool
	caseSensitive bool
}

// SortDataset sorts rows in place per the --sort spec. The spec is a comma
// separated list of output keys; a leading - sorts that key descending, a
// leading ! makes the comparison case sensitive. Numeric values compare
// numerically, everything else compares as strings.
func SortDataset(dataset []map[string]interface{}, spec string) {
	keys := buildSortKeys(spec)
	if len(keys) == 0 {
		return
	}

	sort.SliceStable(dataset, func(i, j int) bool {
		for _, k := range keys {
			cmp := compareValues(dataset[i][k.key], dataset[j][k.key], k.caseSensitive)
			if cmp == 0 {
				continue
			}
			if k.descending {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

func buildSortKeys(spec string) []sortKey {
	if spec == "" {
		return nil
	}

	var keys []sortKey
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		k := sortKey{}
		for {
			if strings.HasPrefix(part, "-") {
				k.descending = true
				part = part[1:]
				continue
			}
			if strings.HasPrefix(part, "!") {
				k.caseSensitive = true
				part = part[1:]
				continue
			}
			break
		}

		k.key = part
		if k.key != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

func compareValues(a interface{}, b interface{}, caseSensitive bool) int {
	// nils sort first so missing keys cluster at the top.
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}

	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}

	as := InterfaceToString(a)
	bs := InterfaceToString(b)
	if !caseSensitive {
		as = strings.ToLower(as)
		bs = strings.ToLower(bs)
	}
	return strings.Compare(as, bs)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
