package dbtypes

import (
	"database/sql/driver"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// UUIDArray maps a Postgres uuid[] column. The array literal is read and
// written through pq.StringArray, which also round-trips on SQLite text
// columns. NULL scans as an empty array.
type UUIDArray []uuid.UUID

func (a *UUIDArray) Scan(src any) error {
	var raw pq.StringArray
	if err := raw.Scan(src); err != nil {
		return fmt.Errorf("UUIDArray: %w", err)
	}
	ids := make(UUIDArray, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return fmt.Errorf("UUIDArray: parse %q: %w", s, err)
		}
		ids = append(ids, id)
	}
	*a = ids
	return nil
}

func (a UUIDArray) Value() (driver.Value, error) {
	strs := make(pq.StringArray, len(a))
	for i, id := range a {
		strs[i] = id.String()
	}
	return strs.Value()
}

// Intersects reports whether any id in other also appears in a.
func (a UUIDArray) Intersects(other []uuid.UUID) bool {
	return slices.ContainsFunc(other, func(id uuid.UUID) bool {
		return slices.Contains(a, id)
	})
}
