// Package transferstatus verifies the committee's vote on a single
// outstanding transfer (spec §4.4): each reporting computor's signed
// slab carries its own view of every other computor's status bit for
// this transfer; a Tally aggregates those views into the 451-of-675
// decision and a receipt assembles the evidence.
package transferstatus

import "github.com/energyledger/client/wire"

// Tally aggregates per-reporting-computor bitfields into the
// `report[unseen,seen,processed]` counts of spec §4.4: a reporter×reported
// matrix with `i != j`, normalized by `NumberOfComputors - 1` since each
// underlying fact is reported redundantly by every reporter that has an
// opinion on it.
type Tally struct {
	statuses  [wire.NumberOfComputors][wire.NumberOfComputors]wire.VoteStatus
	reported  [wire.NumberOfComputors]bool
	records   [wire.NumberOfComputors]wire.TransferStatusRecord
}

// NewTally returns an empty Tally.
func NewTally() *Tally {
	return &Tally{}
}

// RecordReporter stores reporter's agreed slab and decodes its bitfield
// into the reporter's row of the matrix, skipping the reporter's own
// diagonal entry (spec: "reporter × reported pairs with i != j").
func (t *Tally) RecordReporter(reporter int, record wire.TransferStatusRecord) {
	t.records[reporter] = record
	t.reported[reporter] = true
	for j := 0; j < wire.NumberOfComputors; j++ {
		if j == reporter {
			continue
		}
		t.statuses[reporter][j] = record.Vote(j)
	}
}

// Reported reports whether reporter has contributed a slab yet.
func (t *Tally) Reported(reporter int) bool {
	return t.reported[reporter]
}

// Report returns the normalized aggregate counts for each vote status,
// per spec §4.4's "expose floor(x / (NUMBER_OF_COMPUTORS - 1))".
func (t *Tally) Report() (unseen, seen, processed int) {
	var counts [4]int
	for i := 0; i < wire.NumberOfComputors; i++ {
		if !t.reported[i] {
			continue
		}
		for j := 0; j < wire.NumberOfComputors; j++ {
			if i == j {
				continue
			}
			counts[t.statuses[i][j]]++
		}
	}
	const divisor = wire.NumberOfComputors - 1
	return counts[wire.VoteUnseen] / divisor, counts[wire.VoteSeen] / divisor, counts[wire.VoteProcessed] / divisor
}

// ReporterMajorityVote returns reporter's most common off-diagonal vote,
// used to decide which reporters' slabs back a processed-quorum receipt
// (spec §4.4: "for each reporting computor that itself voted processed").
func (t *Tally) ReporterMajorityVote(reporter int) (wire.VoteStatus, bool) {
	if !t.reported[reporter] {
		return 0, false
	}
	var counts [4]int
	for j := 0; j < wire.NumberOfComputors; j++ {
		if j == reporter {
			continue
		}
		counts[t.statuses[reporter][j]]++
	}
	best := wire.VoteUnseen
	for v := wire.VoteSeen; v <= wire.VoteProcessed; v++ {
		if counts[v] > counts[best] {
			best = v
		}
	}
	return best, true
}

// Record returns reporter's stored slab, if any.
func (t *Tally) Record(reporter int) (wire.TransferStatusRecord, bool) {
	return t.records[reporter], t.reported[reporter]
}
