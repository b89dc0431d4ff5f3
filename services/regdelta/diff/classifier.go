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
	"strings"

	"github.com/RegDeltaAI/RegDeltaLocal/services/regdelta/datatypes"
)

// ClassifyChange derives the change kind from old and new content alone.
// It is the single source of truth: any kind carried on a record from
// upstream (or a caller) is recomputed through this function before use.
func ClassifyChange(old, new string) datatypes.ChangeKind {
	old = strings.TrimSpace(old)
	new = strings.TrimSpace(new)
	switch {
	case old == "" && new != "":
		return datatypes.KindAdded
	case old != "" && new == "":
		return datatypes.KindRemoved
	case old != new:
		return datatypes.KindModified
	default:
		return datatypes.KindUnchanged
	}
}

// ClassifyRecord recomputes and overwrites the kind on a change record.
func ClassifyRecord(rec *datatypes.ChangeRecord) datatypes.ChangeKind {
	rec.Kind = ClassifyChange(rec.Old, rec.New)
	return rec.Kind
}
