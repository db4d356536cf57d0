/*
events.go - Chronological event timeline

PURPOSE:
  Produces a single, strictly ordered event sequence from two independently
  stored collections (deliveries and transactions). The replay engine walks
  this sequence exactly once.

ORDERING CONTRACT (hard requirement):
  1. Events are ordered by date ascending. Dates are ISO YYYY-MM-DD strings,
     so lexicographic comparison is chronological comparison.
  2. On the same date, ALL deliveries come before ALL transactions,
     regardless of time-of-day. A delivery restocks the tank before any
     same-day dispensing is priced against it.
  3. Within the same date and kind, original storage order is preserved
     (stable sort). No further sort key exists.

  Reordering a same-day delivery/transaction pair changes every downstream
  cost figure, so this comparator is the single place ordering lives.

SEE ALSO:
  - replay.go: Consumes the merged sequence
*/
package station

import "sort"

// =============================================================================
// EVENT - Tagged union over the two ledger record kinds
// =============================================================================

type EventKind int

const (
	// KindDelivery sorts before KindDispense on the same date.
	KindDelivery EventKind = iota
	KindDispense
)

// Event wraps either a Delivery or a Transaction. Exactly one of the two
// record pointers is set, according to Kind.
type Event struct {
	Date        string
	Kind        EventKind
	Delivery    *Delivery
	Transaction *Transaction
}

// MergeEvents builds the replay timeline from the full historical sets of
// deliveries and transactions. Inputs are expected in storage order; that
// order is preserved for events sharing the same (date, kind).
func MergeEvents(deliveries []Delivery, transactions []Transaction) []Event {
	events := make([]Event, 0, len(deliveries)+len(transactions))

	for i := range deliveries {
		d := &deliveries[i]
		events = append(events, Event{Date: d.Date, Kind: KindDelivery, Delivery: d})
	}
	for i := range transactions {
		t := &transactions[i]
		events = append(events, Event{Date: t.Date, Kind: KindDispense, Transaction: t})
	}

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Date != events[j].Date {
			return events[i].Date < events[j].Date
		}
		return events[i].Kind < events[j].Kind
	})

	return events
}
