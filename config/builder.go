package config

import "time"

// Builder provides a fluent, sticky-error interface for constructing a
// Config, in the same style as the teacher's consensus config builder:
// each With* method is a no-op once an error has been recorded, and the
// accumulated error surfaces only from Build.
type Builder struct {
	config Config
	err    error
}

// NewBuilder returns a Builder seeded with Default().
func NewBuilder() *Builder {
	return &Builder{config: Default()}
}

// WithSeed sets the identity seed.
func (b *Builder) WithSeed(seed string) *Builder {
	if b.err != nil {
		return b
	}
	if len(seed) != seedLength {
		b.err = ErrInvalidSeed
		return b
	}
	for _, c := range seed {
		if c < 'a' || c > 'z' {
			b.err = ErrInvalidSeed
			return b
		}
	}
	b.config.Seed = seed
	return b
}

// WithIndex sets the identity sub-derivation index.
func (b *Builder) WithIndex(index int) *Builder {
	if b.err != nil {
		return b
	}
	if index < 0 {
		b.err = ErrInvalidIndex
		return b
	}
	b.config.Index = index
	return b
}

// WithPeers sets the three initial peer addresses.
func (b *Builder) WithPeers(peers [NumberOfConnections]string) *Builder {
	if b.err != nil {
		return b
	}
	for _, p := range peers {
		if p == "" {
			b.err = ErrInvalidPeerCount
			return b
		}
	}
	b.config.Peers = peers
	return b
}

// WithAdminPublicKey sets the admin public key that verifies computer-state
// snapshots.
func (b *Builder) WithAdminPublicKey(key [32]byte) *Builder {
	if b.err != nil {
		return b
	}
	if isZeroKey(key) {
		b.err = ErrMissingAdminKey
		return b
	}
	b.config.AdminPublicKey = key
	return b
}

// WithDatabasePath sets the on-disk location for the per-identity store.
func (b *Builder) WithDatabasePath(path string) *Builder {
	if b.err != nil {
		return b
	}
	if path == "" {
		b.err = ErrMissingDatabasePath
		return b
	}
	b.config.DatabasePath = path
	return b
}

// WithConnectionTimeout overrides the per-socket connect deadline.
func (b *Builder) WithConnectionTimeout(d time.Duration) *Builder {
	return b.withPositiveDuration(&b.config.ConnectionTimeout, d)
}

// WithReconnectTimeout overrides the delay before reopening a closed socket.
func (b *Builder) WithReconnectTimeout(d time.Duration) *Builder {
	return b.withPositiveDuration(&b.config.ReconnectTimeout, d)
}

// WithComputerStateSynchronizationTimeout overrides the committee-state poll
// period.
func (b *Builder) WithComputerStateSynchronizationTimeout(d time.Duration) *Builder {
	return b.withPositiveDuration(&b.config.ComputerStateSynchronizationTimeout, d)
}

// WithComputerStateSynchronizationDelay overrides the additional grace
// period before declaring desync.
func (b *Builder) WithComputerStateSynchronizationDelay(d time.Duration) *Builder {
	return b.withPositiveDuration(&b.config.ComputerStateSynchronizationDelay, d)
}

func (b *Builder) withPositiveDuration(field *time.Duration, d time.Duration) *Builder {
	if b.err != nil {
		return b
	}
	if d <= 0 {
		b.err = ErrInvalidTimeout
		return b
	}
	*field = d
	return b
}

// Build validates the accumulated Config and returns it.
func (b *Builder) Build() (Config, error) {
	if b.err != nil {
		return Config{}, b.err
	}
	if err := Validate(b.config); err != nil {
		return Config{}, err
	}
	return b.config, nil
}

// Validate reports whether cfg is a fully-populated, internally consistent
// Config.
func Validate(cfg Config) error {
	if len(cfg.Seed) != seedLength {
		return ErrInvalidSeed
	}
	for _, c := range cfg.Seed {
		if c < 'a' || c > 'z' {
			return ErrInvalidSeed
		}
	}
	if cfg.Index < 0 {
		return ErrInvalidIndex
	}
	for _, p := range cfg.Peers {
		if p == "" {
			return ErrInvalidPeerCount
		}
	}
	if isZeroKey(cfg.AdminPublicKey) {
		return ErrMissingAdminKey
	}
	if cfg.DatabasePath == "" {
		return ErrMissingDatabasePath
	}
	if cfg.ConnectionTimeout <= 0 || cfg.ReconnectTimeout <= 0 ||
		cfg.ComputerStateSynchronizationTimeout <= 0 || cfg.ComputerStateSynchronizationDelay <= 0 {
		return ErrInvalidTimeout
	}
	return nil
}
