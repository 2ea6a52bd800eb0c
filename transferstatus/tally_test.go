package transferstatus

import (
	"testing"

	"github.com/energyledger/client/wire"
	"github.com/stretchr/testify/require"
)

func recordWithUniformVote(v wire.VoteStatus) wire.TransferStatusRecord {
	var r wire.TransferStatusRecord
	for j := 0; j < wire.NumberOfComputors; j++ {
		wire.SetVote(r.Bitfield[:], j, v)
	}
	return r
}

func TestTallyReportCountsNormalizedByReporterCount(t *testing.T) {
	tally := NewTally()
	record := recordWithUniformVote(wire.VoteProcessed)

	for i := 0; i < 451; i++ {
		tally.RecordReporter(i, record)
	}

	_, _, processed := tally.Report()
	require.Equal(t, 451, processed)
}

func TestTallyUnreportedReportersDoNotCount(t *testing.T) {
	tally := NewTally()
	require.False(t, tally.Reported(3))
	_, _, processed := tally.Report()
	require.Zero(t, processed)
}

func TestTallyReporterMajorityVote(t *testing.T) {
	tally := NewTally()
	var r wire.TransferStatusRecord
	for j := 0; j < wire.NumberOfComputors; j++ {
		v := wire.VoteSeen
		if j%3 == 0 {
			v = wire.VoteProcessed
		}
		wire.SetVote(r.Bitfield[:], j, v)
	}
	tally.RecordReporter(2, r)

	majority, ok := tally.ReporterMajorityVote(2)
	require.True(t, ok)
	require.Equal(t, wire.VoteSeen, majority)
}
