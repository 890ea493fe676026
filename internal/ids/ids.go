// Package ids issues identifiers for users, factions, and stat snapshots.
package ids

import "github.com/oklog/ulid/v2"

// New returns a lexicographically sortable ULID string. Ordering by id is
// ordering by creation time, which keeps heir selection and admin listings
// cheap.
func New() string {
	return ulid.Make().String()
}
