// Package spltoken is the host-side token ledger: mints, token accounts
// and the transfer/mint/burn executor the pool and farming engines move
// value through.
package spltoken

import (
	"math"
	"sync"

	"github.com/gagliardetto/solana-go"

	"github.com/egaotan/solana-amm/program"
)

// Mint is a token species with a single mint authority.
type Mint struct {
	Authority solana.PublicKey
	Supply    program.TokenAmount
	Decimals  uint8
}

// Account holds one balance of one mint for one owner.
type Account struct {
	Mint   solana.PublicKey
	Owner  solana.PublicKey
	Amount program.TokenAmount
}

// Ledger is an in-memory token program. All balance moves run under one
// lock so a multi-step operation observes consistent supplies.
type Ledger struct {
	mu       sync.Mutex
	mints    map[solana.PublicKey]*Mint
	accounts map[solana.PublicKey]*Account
}

func NewLedger() *Ledger {
	return &Ledger{
		mints:    make(map[solana.PublicKey]*Mint),
		accounts: make(map[solana.PublicKey]*Account),
	}
}

// CreateMint registers a new token species.
func (l *Ledger) CreateMint(mint, authority solana.PublicKey, decimals uint8) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if mint.IsZero() {
		return program.ErrInvalidAccountInput
	}
	if _, ok := l.mints[mint]; ok {
		return program.ErrInvalidAccountInput
	}
	l.mints[mint] = &Mint{Authority: authority, Decimals: decimals}
	return nil
}

// CreateAccount opens an empty token account for a mint.
func (l *Ledger) CreateAccount(key, mint, owner solana.PublicKey) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if key.IsZero() {
		return program.ErrInvalidAccountInput
	}
	if _, ok := l.mints[mint]; !ok {
		return program.ErrInvalidAccountInput
	}
	if _, ok := l.accounts[key]; ok {
		return program.ErrInvalidAccountInput
	}
	l.accounts[key] = &Account{Mint: mint, Owner: owner}
	return nil
}

// Balance returns a token account's amount; a missing account reads as 0.
func (l *Ledger) Balance(key solana.PublicKey) program.TokenAmount {
	l.mu.Lock()
	defer l.mu.Unlock()
	if a, ok := l.accounts[key]; ok {
		return a.Amount
	}
	return 0
}

// Supply returns a mint's outstanding token supply.
func (l *Ledger) Supply(mint solana.PublicKey) program.TokenAmount {
	l.mu.Lock()
	defer l.mu.Unlock()
	if m, ok := l.mints[mint]; ok {
		return m.Supply
	}
	return 0
}

// GetMint returns a copy of a mint, or nil.
func (l *Ledger) GetMint(mint solana.PublicKey) *Mint {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.mints[mint]
	if !ok {
		return nil
	}
	copied := *m
	return &copied
}

// GetAccount returns a copy of a token account, or nil.
func (l *Ledger) GetAccount(key solana.PublicKey) *Account {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.accounts[key]
	if !ok {
		return nil
	}
	copied := *a
	return &copied
}

// Transfer moves tokens between two accounts of the same mint.
func (l *Ledger) Transfer(from, to solana.PublicKey, amount program.TokenAmount) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	src, ok := l.accounts[from]
	if !ok {
		return program.ErrInvalidAccountInput
	}
	dst, ok := l.accounts[to]
	if !ok {
		return program.ErrInvalidAccountInput
	}
	if src.Mint != dst.Mint {
		return program.ErrInvalidTokenMints
	}
	if src.Amount < amount {
		return program.ErrInvalidArg
	}
	if uint64(dst.Amount) > math.MaxUint64-uint64(amount) {
		return program.ErrMathOverflow
	}
	src.Amount -= amount
	dst.Amount += amount
	return nil
}

// Mint issues new tokens of a mint into an account.
func (l *Ledger) Mint(mint, to solana.PublicKey, amount program.TokenAmount) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.mints[mint]
	if !ok {
		return program.ErrInvalidAccountInput
	}
	dst, ok := l.accounts[to]
	if !ok || dst.Mint != mint {
		return program.ErrInvalidAccountInput
	}
	if uint64(m.Supply) > math.MaxUint64-uint64(amount) {
		return program.ErrMathOverflow
	}
	if uint64(dst.Amount) > math.MaxUint64-uint64(amount) {
		return program.ErrMathOverflow
	}
	m.Supply += amount
	dst.Amount += amount
	return nil
}

// Burn destroys tokens from an account, shrinking the mint supply.
func (l *Ledger) Burn(mint, from solana.PublicKey, amount program.TokenAmount) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.mints[mint]
	if !ok {
		return program.ErrInvalidAccountInput
	}
	src, ok := l.accounts[from]
	if !ok || src.Mint != mint {
		return program.ErrInvalidAccountInput
	}
	if src.Amount < amount || m.Supply < amount {
		return program.ErrInvalidArg
	}
	m.Supply -= amount
	src.Amount -= amount
	return nil
}
