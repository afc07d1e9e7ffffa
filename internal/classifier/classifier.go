// Package classifier labels an incoming trade CURRENT_DATED, FORWARD_DATED,
// or BACKDATED by comparing its effective date against today and the
// position snapshot's latest known effective date.
package classifier

import "time"

// Label is the classification outcome.
type Label string

const (
	CurrentDated Label = "CURRENT_DATED"
	ForwardDated Label = "FORWARD_DATED"
	Backdated    Label = "BACKDATED"
)

// Classify applies the following rules exactly:
//   - effectiveDate > today                              => FORWARD_DATED
//   - lastSnapshotDate absent OR effectiveDate >= it      => CURRENT_DATED
//   - else                                                => BACKDATED
//
// The comparisons are on the full time.Time instants (After/Before); no
// truncation to a day happens here, so callers pass values already at the
// granularity they want compared.
func Classify(effectiveDate, today time.Time, lastSnapshotDate *time.Time) Label {
	if effectiveDate.After(today) {
		return ForwardDated
	}
	if lastSnapshotDate == nil || !effectiveDate.Before(*lastSnapshotDate) {
		return CurrentDated
	}
	return Backdated
}
