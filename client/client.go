// Package client composes the configuration, identity, transport,
// quorum, computer-state, transfer, and ledger packages into the single
// façade spec §6 describes: construct with a validated Config, Launch it,
// call Transfer/ImportReceipt, subscribe to its event stream, and
// Terminate it when done.
package client

import (
	"context"
	"sync"

	"github.com/energyledger/client/computerstate"
	"github.com/energyledger/client/config"
	"github.com/energyledger/client/events"
	"github.com/energyledger/client/identity"
	"github.com/energyledger/client/ledger"
	"github.com/energyledger/client/quorum"
	"github.com/energyledger/client/transfer"
	"github.com/energyledger/client/transport"
	"github.com/energyledger/client/xcrypto"
	"github.com/energyledger/client/xlog"
)

// Client is the core library entry point (spec §6 "Public operations").
// Every exported method is safe to call concurrently.
type Client struct {
	cfg config.Config
	log xlog.Logger

	hasher   xcrypto.Hasher
	signer   *xcrypto.SchnorrSigner
	verifier xcrypto.SchnorrVerifier

	store    *ledger.LevelDBStore
	ledger   *ledger.Ledger
	engine   *quorum.Engine
	verify   *computerstate.Verifier
	pipeline *transfer.Pipeline
	events   *events.Broadcaster

	mu           sync.Mutex
	launched     bool
	connected    bool
	workCancel   context.CancelFunc
	engineCancel context.CancelFunc
	workWg       sync.WaitGroup
	engineWg     sync.WaitGroup
}

// New constructs a Client over cfg: it derives the identity key pair,
// opens the on-disk store at cfg.DatabasePath, and replays the local
// ledger. The client is not yet connected to any peer until Launch runs.
func New(cfg config.Config, log xlog.Logger) (*Client, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	if log == nil {
		log = xlog.NewNoOp()
	}

	hasher := xcrypto.NewBlake3Hasher()
	privateKey, err := identity.PrivateKey(hasher, cfg.Seed, cfg.Index)
	if err != nil {
		return nil, err
	}
	preimage, err := identity.PrivateKeyPreimage(cfg.Seed, cfg.Index)
	if err != nil {
		return nil, err
	}
	signer := xcrypto.NewSchnorrSigner(privateKey)
	verifier := xcrypto.NewSchnorrVerifier()

	store, err := ledger.OpenLevelDBStore(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	l := ledger.New(store, hasher, signer, verifier, preimage[:], log)
	if err := l.Replay(cfg.AdminPublicKey); err != nil {
		store.Close()
		return nil, err
	}

	broadcaster := events.NewBroadcaster(64)
	engine := quorum.New(transport.DialWebsocket, cfg.Peers, cfg.ConnectionTimeout, cfg.ReconnectTimeout, log, broadcaster, quorum.NewMetrics(nil))
	clock := transfer.NewSystemClock()
	stateVerifier := computerstate.New(engine, hasher, verifier, cfg.AdminPublicKey,
		cfg.ComputerStateSynchronizationTimeout, cfg.ComputerStateSynchronizationTimeout+cfg.ComputerStateSynchronizationDelay,
		clock, broadcaster, log)
	pipeline := transfer.NewPipeline(hasher, signer, verifier, clock, l, engine, stateVerifier, broadcaster, log)

	return &Client{
		cfg:      cfg,
		log:      log,
		hasher:   hasher,
		signer:   signer,
		verifier: verifier,
		store:    store,
		ledger:   l,
		engine:   engine,
		verify:   stateVerifier,
		pipeline: pipeline,
		events:   broadcaster,
	}, nil
}

// Launch starts the quorum engine's socket loop, the computer-state
// verifier, and the transfer pipeline's confirmation driver, and
// re-broadcasts any transfer left pending from a prior run (spec §4.5
// "Re-broadcast of stale transfers").
func (c *Client) Launch() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.launched {
		return ErrAlreadyLaunched
	}
	c.launched = true
	c.connected = true

	engineCtx, engineCancel := context.WithCancel(context.Background())
	workCtx, workCancel := context.WithCancel(engineCtx)
	c.engineCancel = engineCancel
	c.workCancel = workCancel

	c.pipeline.RebroadcastStale()

	c.engineWg.Add(1)
	go func() { defer c.engineWg.Done(); c.engine.Run(engineCtx) }()

	c.workWg.Add(2)
	go func() { defer c.workWg.Done(); c.verify.Run(workCtx) }()
	go func() { defer c.workWg.Done(); c.pipeline.Run(workCtx) }()

	return nil
}

// Terminate stops the client's internal drivers. If closeConnection is
// false, only the computer-state verifier and transfer pipeline are
// stopped, leaving peer sockets open so Transfer/SetPeer keep working;
// the connection can still be closed later with a second call passing
// true. If true, the engine's own run loop is cancelled too, closing
// every socket, and the underlying database and event stream are
// closed; a later Launch does not reopen them.
func (c *Client) Terminate(closeConnection bool) error {
	c.mu.Lock()
	if !c.launched {
		c.mu.Unlock()
		return ErrNotLaunched
	}
	workCancel := c.workCancel
	engineCancel := c.engineCancel
	wasConnected := c.connected
	c.mu.Unlock()

	workCancel()
	c.workWg.Wait()

	if !closeConnection {
		return nil
	}

	if wasConnected {
		engineCancel()
		c.engineWg.Wait()
	}

	c.mu.Lock()
	c.launched = false
	c.connected = false
	c.mu.Unlock()

	c.events.Close()
	return c.store.Close()
}

// Close releases the underlying database without requiring Launch to
// have run, for read-only uses such as printing a balance.
func (c *Client) Close() error {
	return c.store.Close()
}

// Transfer builds, persists, and broadcasts a new transfer (spec §6
// "transfer").
func (c *Client) Transfer(destination string, energy uint64) ([32]byte, error) {
	return c.pipeline.Transfer(destination, energy)
}

// ImportReceipt externally verifies a base64-encoded processed-transfer
// receipt and integrates it into local state (spec §6 "importReceipt").
func (c *Client) ImportReceipt(receiptBase64 string) error {
	return c.pipeline.ImportReceipt(c.cfg.AdminPublicKey, receiptBase64)
}

// AddEnvironmentListener subscribes to the client's event stream (spec
// §6 "addEnvironmentListener"), returning the channel and a handle to
// pass to RemoveEnvironmentListener.
func (c *Client) AddEnvironmentListener() (<-chan events.Event, int) {
	return c.events.Subscribe()
}

// RemoveEnvironmentListener unsubscribes a listener previously returned
// by AddEnvironmentListener (spec §6 "removeEnvironmentListener").
func (c *Client) RemoveEnvironmentListener(id int) {
	c.events.Unsubscribe(id)
}

// SetPeer replaces the peer address used by connection slot i (spec §6
// "setPeer").
func (c *Client) SetPeer(i int, peer string) {
	c.engine.SetPeer(i, peer)
}

// Energy returns the current in-memory energy balance.
func (c *Client) Energy() uint64 {
	return c.ledger.Energy()
}

// Identity returns this client's external identity string.
func (c *Client) Identity() string {
	return identity.Derive(c.hasher, c.signer.PublicKey()).String()
}
