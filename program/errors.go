package program

import (
	"errors"
)

// Stable error taxonomy exposed to the host. Handlers compare with
// errors.Is, so every failure inside the kernel wraps one of these.
var (
	ErrMathOverflow                          = errors.New("math overflow")
	ErrInvalidAccountInput                   = errors.New("invalid account input")
	ErrInvalidArg                            = errors.New("invalid argument")
	ErrSlippageExceeded                      = errors.New("slippage exceeded")
	ErrInvariantViolation                    = errors.New("invariant violation")
	ErrInvalidTokenMints                     = errors.New("invalid token mints")
	ErrInvalidLpTokenAmount                  = errors.New("invalid lp token amount")
	ErrFarmAdminMismatch                     = errors.New("farm admin mismatch")
	ErrInsufficientTimeSinceLastSnapshot     = errors.New("insufficient time since last snapshot")
	ErrUnknownHarvestMint                    = errors.New("unknown harvest mint")
	ErrConfigurationUpdateLimitExceeded      = errors.New("configuration update limit exceeded")
	ErrCannotCompoundIfStakeMintIsNotHarvest = errors.New("cannot compound if stake mint is not a harvest mint")
	ErrCannotOverwriteOpenHarvestPeriod      = errors.New("cannot overwrite an open harvest period")
)
