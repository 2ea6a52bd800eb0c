package transfer

import "errors"

var (
	// ErrIllegalArgument is returned when a destination identity string
	// cannot be parsed, or the requested energy is below
	// wire.MinEnergyAmount.
	ErrIllegalArgument = errors.New("transfer: illegal argument")
	// ErrInsufficientEnergy is returned when the requested amount exceeds
	// the client's current local energy balance.
	ErrInsufficientEnergy = errors.New("transfer: amount exceeds current energy")
	// ErrInvalidResponses is returned when an imported receipt is
	// malformed or its processed votes fall short of the quorum
	// threshold.
	ErrInvalidResponses = errors.New("transfer: receipt carries insufficient or malformed responses")
	// ErrUnknownTransfer is returned when an imported receipt's transfer
	// hash does not match any locally pending transfer.
	ErrUnknownTransfer = errors.New("transfer: receipt does not match a pending transfer")
)
