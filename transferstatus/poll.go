package transferstatus

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/energyledger/client/events"
	"github.com/energyledger/client/quorum"
	"github.com/energyledger/client/wire"
	"github.com/energyledger/client/xcrypto"
	"github.com/energyledger/client/xlog"
	"go.uber.org/zap"
)

// pollInterval is the 100 ms inter-request spacing of spec §4.4.
const pollInterval = 100 * time.Millisecond

// Clock supplies the request timestamp carried by each status request.
type Clock interface {
	Now() uint64
}

// Snapshot is the subset of the verified computer-state the status
// verifier needs: epoch/tick for freshness checks, computor public keys
// to verify reporting computors' signatures, and the persisted snapshot
// bytes that prefix any assembled receipt (spec §4.3, §4.4).
type Snapshot struct {
	Epoch              uint16
	Tick               uint32
	ComputorPublicKeys [wire.NumberOfComputors][32]byte
	Bytes              []byte
}

// Poll drives one outstanding getTransferStatus(hash) operation: the
// 100 ms-spaced, 676-request polling schedule, the per-reporting-computor
// agreement and tally, and receipt assembly once a status crosses the
// 451 threshold.
type Poll struct {
	hash       [32]byte
	engine     *quorum.Engine
	hasher     xcrypto.Hasher
	verifier   xcrypto.Verifier
	clock      Clock
	snapshotFn func() (Snapshot, bool)
	broadcast  *events.Broadcaster
	log        xlog.Logger

	tally      *Tally
	agreements [wire.NumberOfComputors]*quorum.Agreement
	nextIndex  int
	timestamp  uint64

	concluded bool
	status    wire.VoteStatus
	receipt   []byte
}

// NewPoll constructs a Poll for hash. snapshotFn must return the latest
// verified computer-state snapshot (see package computerstate).
func NewPoll(hash [32]byte, engine *quorum.Engine, hasher xcrypto.Hasher, verifier xcrypto.Verifier, clock Clock, snapshotFn func() (Snapshot, bool), broadcaster *events.Broadcaster, log xlog.Logger) *Poll {
	return &Poll{
		hash:       hash,
		engine:     engine,
		hasher:     hasher,
		verifier:   verifier,
		clock:      clock,
		snapshotFn: snapshotFn,
		broadcast:  broadcaster,
		log:        log,
		tally:      NewTally(),
	}
}

// Concluded reports whether the 451 threshold has been crossed for some
// status.
func (p *Poll) Concluded() bool {
	return p.concluded
}

// Status returns the concluding status, if any.
func (p *Poll) Status() (wire.VoteStatus, bool) {
	return p.status, p.concluded
}

// Receipt returns the assembled receipt bytes, set only when Status is
// VoteProcessed.
func (p *Poll) Receipt() ([]byte, bool) {
	return p.receipt, p.receipt != nil
}

// Run issues the polling schedule and processes responses from
// engine.Inbound() until concluded or ctx is cancelled.
func (p *Poll) Run(ctx context.Context) {
	p.timestamp = p.clock.Now()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if p.concluded {
				return
			}
			if p.nextIndex < wire.NumberOfComputors {
				p.sendRequest(p.nextIndex)
				p.nextIndex++
			}
		case in := <-p.engine.Inbound():
			p.handleInbound(in)
			if p.concluded {
				return
			}
		}
	}
}

// Resend re-issues requests for every reporting computor already asked
// about but not yet agreed upon, so a freshly reopened socket resumes
// in-flight responses (spec §4.2/§4.4's "retain the full 676-request
// set so it can be replayed").
func (p *Poll) Resend() {
	for i := 0; i < p.nextIndex; i++ {
		if !p.tally.Reported(i) {
			p.sendRequest(i)
		}
	}
}

func (p *Poll) sendRequest(i int) {
	idx := make([]byte, 2)
	binary.LittleEndian.PutUint16(idx, uint16(i))
	extra := append(idx, quorum.EncodeTimestampExtra(p.timestamp)...)
	payload := wire.SubTypedPayload(byte(wire.SubKindGetTransferStatus), extra)
	p.engine.Broadcast(wire.EncodeFrame(wire.RequestKindSubTyped, payload))

	if p.agreements[i] == nil {
		p.agreements[i] = quorum.NewAgreement()
	} else {
		p.agreements[i].Reset()
	}
}

func (p *Poll) handleInbound(in quorum.InboundFrame) {
	if in.Frame.Header.RequestKind != wire.RequestKindSubTyped {
		return
	}
	if len(in.Frame.Payload) != wire.TransferStatusRecordSize {
		return
	}
	record, err := wire.DecodeTransferStatusRecord(in.Frame.Payload)
	if err != nil {
		p.log.Warn("transferstatus: decode failed", zap.Error(err))
		return
	}

	reporter := int(record.ComputorIndex)
	if reporter < 0 || reporter >= wire.NumberOfComputors {
		return
	}
	if record.TransferHash != p.hash {
		return
	}

	snap, ok := p.snapshotFn()
	if !ok {
		return
	}
	if record.Epoch != snap.Epoch || record.Tick > snap.Tick {
		return // a status from the future (or a different epoch) is inconsistent
	}

	var digest [32]byte
	copy(digest[:], p.hasher.Hash(record.SignedRegionXORed(), 32))
	if !p.verifier.Verify(snap.ComputorPublicKeys[reporter], digest, record.Signature) {
		p.log.Warn("transferstatus: signature verification failed", zap.Int("reporter", reporter))
		return
	}

	agreement := p.agreements[reporter]
	if agreement == nil {
		agreement = quorum.NewAgreement()
		p.agreements[reporter] = agreement
	}
	agreement.Add(in.Slot, record.Signature[:])
	if agreement.Status() >= 1 && !p.tally.Reported(reporter) {
		p.tally.RecordReporter(reporter, record)
		p.checkThreshold(snap)
	}
}

func (p *Poll) checkThreshold(snap Snapshot) {
	unseen, seen, processed := p.tally.Report()
	p.broadcast.Publish(events.Event{Kind: events.KindTransferStatus, TransferStatus: events.TransferStatus{
		Hash: p.hash, Unseen: unseen, Seen: seen, Processed: processed, Epoch: snap.Epoch, Tick: snap.Tick,
	}})

	switch {
	case processed >= wire.StatusQuorumThreshold:
		p.conclude(wire.VoteProcessed, snap)
	case seen >= wire.StatusQuorumThreshold:
		p.conclude(wire.VoteSeen, snap)
	case unseen >= wire.StatusQuorumThreshold:
		p.conclude(wire.VoteUnseen, snap)
	}
}

func (p *Poll) conclude(status wire.VoteStatus, snap Snapshot) {
	p.concluded = true
	p.status = status
	if status == wire.VoteProcessed {
		p.receipt = p.assembleReceipt(snap)
	}
}

// assembleReceipt builds the persisted computer-state bytes followed by
// every reporting computor's full signed slab, for reporters whose
// majority vote backs the processed verdict (spec §4.4).
func (p *Poll) assembleReceipt(snap Snapshot) []byte {
	receipt := append([]byte{}, snap.Bytes...)
	for i := 0; i < wire.NumberOfComputors; i++ {
		vote, ok := p.tally.ReporterMajorityVote(i)
		if !ok || vote != wire.VoteProcessed {
			continue
		}
		record, _ := p.tally.Record(i)
		receipt = append(receipt, record.Encode()...)
	}
	return receipt
}
