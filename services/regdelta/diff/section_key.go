// Copyright (C) 2026 RegDelta AI (contact@regdelta.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package diff

import (
	"sort"
	"strconv"
	"strings"
)

// CompareSectionKeys orders two hierarchical section keys numerically per
// segment, so "1.2" < "1.10" and "1.5" < "2". A key whose segments are a
// strict prefix of the other's sorts first. Returns -1, 0 or 1.
func CompareSectionKeys(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) && i < len(bs); i++ {
		av, aerr := strconv.ParseUint(as[i], 10, 64)
		bv, berr := strconv.ParseUint(bs[i], 10, 64)
		if aerr != nil || berr != nil {
			// Keys produced by the parser are always numeric; fall back to
			// a plain string compare for anything hand-constructed.
			if c := strings.Compare(as[i], bs[i]); c != 0 {
				return c
			}
			continue
		}
		if av < bv {
			return -1
		}
		if av > bv {
			return 1
		}
	}
	switch {
	case len(as) < len(bs):
		return -1
	case len(as) > len(bs):
		return 1
	default:
		return 0
	}
}

// SortSectionKeys sorts keys in place under CompareSectionKeys.
func SortSectionKeys(keys []string) {
	sort.Slice(keys, func(i, j int) bool {
		return CompareSectionKeys(keys[i], keys[j]) < 0
	})
}
