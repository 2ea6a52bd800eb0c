// Package computerstate verifies admin-signed committee snapshots
// (spec §4.3): each kind-0 sub-1 response is checked against the
// configured admin public key, and the verifier escalates its published
// status as more of the three sockets agree.
package computerstate

import (
	"context"
	"time"

	"github.com/energyledger/client/events"
	"github.com/energyledger/client/quorum"
	"github.com/energyledger/client/wire"
	"github.com/energyledger/client/xcrypto"
	"github.com/energyledger/client/xlog"
	"go.uber.org/zap"
)

// roundKey is the single in-flight computer-state round's key in the
// Verifier's own RequestTable.
const roundKey = 0

// Clock supplies the request timestamp; production code uses a
// monotonically-increasing wall clock (see package transfer), tests
// inject a deterministic one.
type Clock interface {
	Now() uint64
}

// Verifier drives the periodic computer-state poll and publishes the
// verified snapshot once enough sockets agree.
type Verifier struct {
	engine         *quorum.Engine
	hasher         xcrypto.Hasher
	verifier       xcrypto.Verifier
	adminPublicKey [32]byte
	clock          Clock
	events         *events.Broadcaster
	log            xlog.Logger

	period           time.Duration
	timeoutPlusDelay time.Duration

	table       *quorum.RequestTable
	records     [wire.NumberOfConnections]*wire.ComputerStateRecord
	roundStart  time.Time
	roundTS     uint64
	status      int
	roundStatus int // agreement status already emitted this round; reset in startRound
	snapshot    []byte
}

// New constructs a Verifier. period is
// computerStateSynchronizationTimeoutDuration; timeoutPlusDelay is that
// period plus computerStateSynchronizationDelayDuration (spec §4.2's
// "timeoutDuration + delayDuration").
func New(engine *quorum.Engine, hasher xcrypto.Hasher, verifier xcrypto.Verifier, adminPublicKey [32]byte, period, timeoutPlusDelay time.Duration, clock Clock, broadcaster *events.Broadcaster, log xlog.Logger) *Verifier {
	return &Verifier{
		engine:           engine,
		hasher:           hasher,
		verifier:         verifier,
		adminPublicKey:   adminPublicKey,
		clock:            clock,
		events:           broadcaster,
		log:              log,
		period:           period,
		timeoutPlusDelay: timeoutPlusDelay,
		table:            quorum.NewRequestTable(nil),
	}
}

// Status returns the last published agreement status (0..3).
func (v *Verifier) Status() int {
	return v.status
}

// Snapshot returns the persisted snapshot bytes from the last
// status-advancing round, if any.
func (v *Verifier) Snapshot() ([]byte, bool) {
	if v.snapshot == nil {
		return nil, false
	}
	return v.snapshot, true
}

// Run issues one poll every period and processes inbound responses from
// engine.Inbound() until ctx is cancelled.
func (v *Verifier) Run(ctx context.Context) {
	ticker := time.NewTicker(v.period)
	defer ticker.Stop()

	v.startRound()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if v.roundStatus == 0 && !v.roundStart.IsZero() && time.Since(v.roundStart) > v.timeoutPlusDelay {
				v.publishStatusZero()
			}
			v.startRound()
		case in := <-v.engine.Inbound():
			v.handleInbound(in)
		}
	}
}

func (v *Verifier) startRound() {
	v.table.Close(roundKey)
	v.table.Open(roundKey)
	v.records = [wire.NumberOfConnections]*wire.ComputerStateRecord{}
	v.roundStart = time.Now()
	v.roundTS = v.clock.Now()
	v.roundStatus = 0

	extra := quorum.EncodeTimestampExtra(v.roundTS)
	payload := wire.SubTypedPayload(byte(wire.SubKindGetComputerState), extra)
	v.engine.Broadcast(wire.EncodeFrame(wire.RequestKindSubTyped, payload))
}

func (v *Verifier) handleInbound(in quorum.InboundFrame) {
	if in.Frame.Header.RequestKind != wire.RequestKindSubTyped {
		return
	}
	if len(in.Frame.Payload) != wire.ComputerStateRecordSize {
		return
	}
	record, err := wire.DecodeComputerStateRecord(in.Frame.Payload)
	if err != nil {
		v.log.Warn("computerstate: decode failed", zap.Error(err))
		return
	}
	if record.ComputorIndex != wire.NumberOfComputors {
		return // not admin-issued
	}
	if record.Timestamp != v.roundTS {
		return // stale response from a previous round
	}
	var digest [32]byte
	copy(digest[:], v.hasher.Hash(record.SignedRegion(), 32))
	if !v.verifier.Verify(v.adminPublicKey, digest, record.AdminSignature) {
		v.log.Warn("computerstate: admin signature verification failed")
		return
	}

	agreement, ok := v.table.Get(roundKey)
	if !ok {
		return
	}
	firstAccepted := agreement.Status() == 0
	v.records[in.Slot] = &record
	agreement.Add(in.Slot, record.AdminSignature[:])

	if firstAccepted {
		v.events.Publish(events.Event{Kind: events.KindInfo, Info: events.Info{Status: 1}})
	}

	// Gated on roundStatus, not status: status is a lifetime high-water
	// mark used by Status()/Snapshot(), but each round's 2/3 escalation
	// (spec §8 "a subsequent round for a new tick emits another 1,2,3")
	// must re-fire even after an earlier round already reached 3.
	if agreement.Status() >= 2 && agreement.Status() > v.roundStatus {
		v.roundStatus = agreement.Status()
		v.status = agreement.Status()
		v.publishSnapshot(record)
	}
	if agreement.Status() == 3 {
		v.table.Close(roundKey)
	}
}

func (v *Verifier) publishSnapshot(record wire.ComputerStateRecord) {
	keys := make([][32]byte, len(record.ComputorPublicKeys))
	copy(keys, record.ComputorPublicKeys[:])
	v.snapshot = record.Encode()
	v.events.Publish(events.Event{Kind: events.KindInfo, Info: events.Info{
		Status:       v.status,
		Epoch:        record.Epoch,
		Tick:         record.Tick,
		ComputorKeys: keys,
	}})
}

func (v *Verifier) publishStatusZero() {
	v.status = 0
	v.table.Close(roundKey)
	v.events.Publish(events.Event{Kind: events.KindInfo, Info: events.Info{Status: 0}})
}
