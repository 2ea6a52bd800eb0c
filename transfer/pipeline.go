package transfer

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/energyledger/client/events"
	"github.com/energyledger/client/ledger"
	"github.com/energyledger/client/quorum"
	"github.com/energyledger/client/transferstatus"
	"github.com/energyledger/client/wire"
	"github.com/energyledger/client/xcrypto"
	"github.com/energyledger/client/xlog"
	"go.uber.org/zap"
)

// confirmPollInterval bounds how often getTransferStatus(hash) may be
// invoked per pending transfer (spec §4.5 "Confirm": "no more often
// than every 676 x 100 x 2 ms").
const confirmPollInterval = time.Duration(wire.NumberOfComputors) * 100 * time.Millisecond * 2

// staleThreshold is the minimum age, in monotonic-timestamp units
// (microseconds), past which an unprocessed transfer found at replay is
// re-broadcast once (spec §4.5 "Re-broadcast of stale transfers").
const staleThreshold = 60 * 1_000_000

// StatusSource supplies the computer-state verifier's current status
// and latest snapshot, decoupling Pipeline from computerstate.Verifier.
type StatusSource interface {
	Status() int
	Snapshot() ([]byte, bool)
}

// Pipeline drives spec §4.5 end to end: building, persisting,
// broadcasting, confirming, and re-broadcasting stale transfers.
type Pipeline struct {
	hasher   xcrypto.Hasher
	signer   xcrypto.Signer
	verifier xcrypto.Verifier
	clock    Clock

	ledger *ledger.Ledger
	engine *quorum.Engine
	status StatusSource

	events *events.Broadcaster
	log    xlog.Logger

	mu       sync.Mutex
	inFlight map[[32]byte]context.CancelFunc
	polls    map[[32]byte]*transferstatus.Poll
	lastPoll map[[32]byte]time.Time
}

// NewPipeline constructs a Pipeline over an already-replayed ledger.
func NewPipeline(hasher xcrypto.Hasher, signer xcrypto.Signer, verifier xcrypto.Verifier, clock Clock, l *ledger.Ledger, engine *quorum.Engine, status StatusSource, broadcaster *events.Broadcaster, log xlog.Logger) *Pipeline {
	return &Pipeline{
		hasher:   hasher,
		signer:   signer,
		verifier: verifier,
		clock:    clock,
		ledger:   l,
		engine:   engine,
		status:   status,
		events:   broadcaster,
		log:      log,
		inFlight: make(map[[32]byte]context.CancelFunc),
		polls:    make(map[[32]byte]*transferstatus.Poll),
		lastPoll: make(map[[32]byte]time.Time),
	}
}

// Transfer builds, persists, and broadcasts a new transfer, returning
// its hash (spec §4.5 "Build"/"Persist"/"Broadcast").
func (p *Pipeline) Transfer(destination string, energy uint64) ([32]byte, error) {
	record, hash, err := Build(p.hasher, p.signer, destination, energy, p.clock)
	if err != nil {
		return [32]byte{}, err
	}
	if energy > p.ledger.Energy() {
		return [32]byte{}, ErrInsufficientEnergy
	}
	if err := p.ledger.PersistProvisional(record, hash); err != nil {
		return [32]byte{}, err
	}
	p.broadcastRecord(record)
	p.events.Publish(events.Event{Kind: events.KindTransfer, Transfer: events.Transfer{
		Hash: hash, Destination: record.Destination, Energy: record.Energy,
	}})
	return hash, nil
}

func (p *Pipeline) broadcastRecord(record wire.TransferRecord) {
	encoded := record.Encode()
	p.engine.Broadcast(wire.EncodeFrame(wire.RequestKindBroadcastTransfer, encoded[:]))
}

// RebroadcastStale re-broadcasts, once, every pending transfer whose
// timestamp is at least 60 seconds old (spec §4.5).
func (p *Pipeline) RebroadcastStale() {
	now := p.clock.Now()
	for _, pt := range p.ledger.PendingTransfers() {
		if now >= pt.Record.Timestamp && now-pt.Record.Timestamp >= staleThreshold {
			p.broadcastRecord(pt.Record)
		}
	}
}

// Run subscribes to computer-state status escalation and drives
// confirmation polling for every pending transfer until ctx is
// cancelled (spec §4.5 "Confirm").
func (p *Pipeline) Run(ctx context.Context) {
	ch, id := p.events.Subscribe()
	defer p.events.Unsubscribe(id)

	p.maybeStartPolls(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-ch:
			switch {
			case ev.Kind == events.KindInfo && ev.Info.Status >= 2:
				p.maybeStartPolls(ctx)
			case ev.Kind == events.KindOpen:
				p.resendActivePolls()
			}
		}
	}
}

// resendActivePolls re-sends every in-flight confirmation poll's next
// request immediately, used when a socket that had been down reopens
// (spec §4.5 "Confirm" combined with the engine's KindOpen event) so a
// poll doesn't wait out its normal interval after a reconnect.
func (p *Pipeline) resendActivePolls() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, poll := range p.polls {
		poll.Resend()
	}
}

func (p *Pipeline) maybeStartPolls(ctx context.Context) {
	if p.status.Status() < 2 {
		return
	}
	snapshotBytes, ok := p.status.Snapshot()
	if !ok {
		return
	}
	snapshot, err := wire.DecodeComputerStateRecord(snapshotBytes)
	if err != nil {
		p.log.Warn("transfer: undecodable computer-state snapshot", zap.Error(err))
		return
	}

	now := time.Now()
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, pt := range p.ledger.PendingTransfers() {
		if _, running := p.inFlight[pt.Hash]; running {
			continue
		}
		if last, polled := p.lastPoll[pt.Hash]; polled && now.Sub(last) < confirmPollInterval {
			continue
		}
		p.lastPoll[pt.Hash] = now
		p.startPoll(ctx, pt, snapshotBytes, snapshot)
	}
}

func (p *Pipeline) startPoll(parent context.Context, pt ledger.PendingTransfer, snapshotBytes []byte, snapshot wire.ComputerStateRecord) {
	pctx, cancel := context.WithCancel(parent)
	p.inFlight[pt.Hash] = cancel

	snap := transferstatus.Snapshot{
		Epoch:              snapshot.Epoch,
		Tick:               snapshot.Tick,
		ComputorPublicKeys: snapshot.ComputorPublicKeys,
		Bytes:              snapshotBytes,
	}
	poll := transferstatus.NewPoll(pt.Hash, p.engine, p.hasher, p.verifier, p.clock,
		func() (transferstatus.Snapshot, bool) { return snap, true }, p.events, p.log)
	p.polls[pt.Hash] = poll

	go func() {
		poll.Run(pctx)
		cancel()

		p.mu.Lock()
		delete(p.inFlight, pt.Hash)
		delete(p.polls, pt.Hash)
		p.mu.Unlock()

		status, concluded := poll.Status()
		if !concluded || status != wire.VoteProcessed {
			return
		}
		receipt, ok := poll.Receipt()
		if !ok {
			return
		}
		p.confirm(pt, receipt)
	}()
}

// ImportReceipt externally verifies a base64-encoded processed-transfer
// receipt (as assembled by transferstatus.Poll) and integrates it into
// local state, adjusting energy (spec §6 "importReceipt").
func (p *Pipeline) ImportReceipt(adminPublicKey [32]byte, receiptBase64 string) error {
	receipt, err := base64.StdEncoding.DecodeString(receiptBase64)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIllegalArgument, err)
	}
	hash, err := p.verifyReceipt(adminPublicKey, receipt)
	if err != nil {
		return err
	}

	for _, pt := range p.ledger.PendingTransfers() {
		if pt.Hash == hash {
			p.confirm(pt, receipt)
			return nil
		}
	}
	return fmt.Errorf("%w: %x", ErrUnknownTransfer, hash)
}

// verifyReceipt checks a receipt's admin-signed snapshot prefix and every
// appended reporting computor's signed slab, tallying their votes the
// same way transferstatus.Poll does, and requires the processed count to
// clear the 451 threshold before trusting the embedded transfer hash.
func (p *Pipeline) verifyReceipt(adminPublicKey [32]byte, receipt []byte) ([32]byte, error) {
	if len(receipt) < wire.ComputerStateRecordSize {
		return [32]byte{}, fmt.Errorf("%w: receipt shorter than a computer-state snapshot", ErrInvalidResponses)
	}
	snapshot, err := wire.DecodeComputerStateRecord(receipt[:wire.ComputerStateRecordSize])
	if err != nil {
		return [32]byte{}, fmt.Errorf("%w: %v", ErrInvalidResponses, err)
	}
	var snapDigest [32]byte
	copy(snapDigest[:], p.hasher.Hash(snapshot.SignedRegion(), 32))
	if !p.verifier.Verify(adminPublicKey, snapDigest, snapshot.AdminSignature) {
		return [32]byte{}, ledger.ErrSignatureVerificationFailed
	}

	rest := receipt[wire.ComputerStateRecordSize:]
	if len(rest) == 0 || len(rest)%wire.TransferStatusRecordSize != 0 {
		return [32]byte{}, fmt.Errorf("%w: malformed status slabs", ErrInvalidResponses)
	}

	tally := transferstatus.NewTally()
	var hash [32]byte
	for offset := 0; offset < len(rest); offset += wire.TransferStatusRecordSize {
		slab, err := wire.DecodeTransferStatusRecord(rest[offset : offset+wire.TransferStatusRecordSize])
		if err != nil {
			return [32]byte{}, fmt.Errorf("%w: %v", ErrInvalidResponses, err)
		}
		if int(slab.ComputorIndex) >= wire.NumberOfComputors {
			return [32]byte{}, fmt.Errorf("%w: reporter index out of range", ErrInvalidResponses)
		}
		if offset == 0 {
			hash = slab.TransferHash
		} else if slab.TransferHash != hash {
			return [32]byte{}, fmt.Errorf("%w: inconsistent transfer hash across slabs", ErrInvalidResponses)
		}
		var digest [32]byte
		copy(digest[:], p.hasher.Hash(slab.SignedRegionXORed(), 32))
		if !p.verifier.Verify(snapshot.ComputorPublicKeys[slab.ComputorIndex], digest, slab.Signature) {
			return [32]byte{}, ledger.ErrSignatureVerificationFailed
		}
		tally.RecordReporter(int(slab.ComputorIndex), slab)
	}
	if _, _, processed := tally.Report(); processed < wire.StatusQuorumThreshold {
		return [32]byte{}, fmt.Errorf("%w: processed votes below quorum threshold", ErrInvalidResponses)
	}
	return hash, nil
}

// confirm rewrites pt's record with its receipt and updates the energy
// balance (spec §4.5 "Confirm": "subtract transferred amount when this
// identity is not the destination; clamp at zero").
func (p *Pipeline) confirm(pt ledger.PendingTransfer, receipt []byte) {
	newEnergy := p.ledger.Energy()
	if pt.Record.Destination != p.signer.PublicKey() {
		if newEnergy >= pt.Record.Energy {
			newEnergy -= pt.Record.Energy
		} else {
			newEnergy = 0
		}
	}
	if err := p.ledger.PersistProcessed(pt.Hash, receipt, newEnergy); err != nil {
		p.log.Warn("transfer: failed to persist processed transfer", zap.Error(err))
		return
	}
	p.events.Publish(events.Event{Kind: events.KindEnergy, Energy: newEnergy})
	p.events.Publish(events.Event{Kind: events.KindReceipt, Receipt: events.Receipt{
		Hash: pt.Hash, Receipt: receipt, ReceiptBase64: base64.StdEncoding.EncodeToString(receipt),
	}})
}
