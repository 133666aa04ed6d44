package spltoken

import (
	"math"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"github.com/egaotan/solana-amm/program"
)

func key(b byte) solana.PublicKey {
	var k solana.PublicKey
	k[0] = b
	return k
}

var (
	mintUSD = key(1)
	mintSOL = key(2)
	owner   = key(3)
	alice   = key(10)
	bob     = key(11)
)

func seededLedger(t *testing.T) *Ledger {
	t.Helper()
	l := NewLedger()
	require.NoError(t, l.CreateMint(mintUSD, owner, 6))
	require.NoError(t, l.CreateMint(mintSOL, owner, 9))
	require.NoError(t, l.CreateAccount(alice, mintUSD, owner))
	require.NoError(t, l.CreateAccount(bob, mintUSD, owner))
	return l
}

func TestCreateGuards(t *testing.T) {
	l := seededLedger(t)
	require.ErrorIs(t, l.CreateMint(mintUSD, owner, 6), program.ErrInvalidAccountInput)
	require.ErrorIs(t, l.CreateMint(solana.PublicKey{}, owner, 6), program.ErrInvalidAccountInput)
	require.ErrorIs(t, l.CreateAccount(alice, mintUSD, owner), program.ErrInvalidAccountInput)
	require.ErrorIs(t, l.CreateAccount(key(12), key(99), owner), program.ErrInvalidAccountInput)
	require.ErrorIs(t, l.CreateAccount(solana.PublicKey{}, mintUSD, owner), program.ErrInvalidAccountInput)
}

func TestMintTransferBurn(t *testing.T) {
	l := seededLedger(t)
	require.NoError(t, l.Mint(mintUSD, alice, 1_000))
	require.Equal(t, program.TokenAmount(1_000), l.Balance(alice))
	require.Equal(t, program.TokenAmount(1_000), l.Supply(mintUSD))

	require.NoError(t, l.Transfer(alice, bob, 300))
	require.Equal(t, program.TokenAmount(700), l.Balance(alice))
	require.Equal(t, program.TokenAmount(300), l.Balance(bob))
	// Transfers never change the supply.
	require.Equal(t, program.TokenAmount(1_000), l.Supply(mintUSD))

	require.NoError(t, l.Burn(mintUSD, bob, 100))
	require.Equal(t, program.TokenAmount(200), l.Balance(bob))
	require.Equal(t, program.TokenAmount(900), l.Supply(mintUSD))
}

func TestTransferGuards(t *testing.T) {
	l := seededLedger(t)
	solAccount := key(20)
	require.NoError(t, l.CreateAccount(solAccount, mintSOL, owner))
	require.NoError(t, l.Mint(mintUSD, alice, 100))

	require.ErrorIs(t, l.Transfer(alice, solAccount, 10), program.ErrInvalidTokenMints)
	require.ErrorIs(t, l.Transfer(alice, bob, 101), program.ErrInvalidArg)
	require.ErrorIs(t, l.Transfer(key(99), bob, 1), program.ErrInvalidAccountInput)
	require.ErrorIs(t, l.Transfer(alice, key(99), 1), program.ErrInvalidAccountInput)

	solFull := key(21)
	require.NoError(t, l.CreateAccount(solFull, mintSOL, owner))
	require.NoError(t, l.Mint(mintSOL, solAccount, 10))
	require.NoError(t, l.Mint(mintSOL, solFull, math.MaxUint64-15))
	require.ErrorIs(t, l.Transfer(solAccount, solFull, 10), program.ErrMathOverflow)
}

func TestMintBurnGuards(t *testing.T) {
	l := seededLedger(t)
	solAccount := key(20)
	require.NoError(t, l.CreateAccount(solAccount, mintSOL, owner))

	require.ErrorIs(t, l.Mint(key(99), alice, 1), program.ErrInvalidAccountInput)
	require.ErrorIs(t, l.Mint(mintUSD, key(99), 1), program.ErrInvalidAccountInput)
	require.ErrorIs(t, l.Mint(mintUSD, solAccount, 1), program.ErrInvalidAccountInput)

	require.NoError(t, l.Mint(mintUSD, alice, math.MaxUint64-5))
	require.ErrorIs(t, l.Mint(mintUSD, alice, 10), program.ErrMathOverflow)

	require.ErrorIs(t, l.Burn(key(99), alice, 1), program.ErrInvalidAccountInput)
	require.ErrorIs(t, l.Burn(mintUSD, solAccount, 1), program.ErrInvalidAccountInput)
	require.ErrorIs(t, l.Burn(mintSOL, solAccount, 1), program.ErrInvalidArg)
}

func TestMissingReadsAsZero(t *testing.T) {
	l := NewLedger()
	require.Equal(t, program.TokenAmount(0), l.Balance(key(99)))
	require.Equal(t, program.TokenAmount(0), l.Supply(key(99)))
	require.Nil(t, l.GetMint(key(99)))
	require.Nil(t, l.GetAccount(key(99)))
}

func TestGetReturnsCopies(t *testing.T) {
	l := seededLedger(t)
	require.NoError(t, l.Mint(mintUSD, alice, 50))

	a := l.GetAccount(alice)
	require.NotNil(t, a)
	a.Amount = 0
	require.Equal(t, program.TokenAmount(50), l.Balance(alice))

	m := l.GetMint(mintUSD)
	require.NotNil(t, m)
	m.Supply = 0
	require.Equal(t, program.TokenAmount(50), l.Supply(mintUSD))
}

func TestAccountLayoutRoundtrip(t *testing.T) {
	account := &Account{Mint: mintUSD, Owner: owner, Amount: 12_345}
	blob, err := EncodeAccount(account)
	require.NoError(t, err)
	require.Len(t, blob, AccountLayoutSize)
	back, err := DecodeAccount(blob)
	require.NoError(t, err)
	require.Equal(t, account, back)

	_, err = DecodeAccount(blob[:10])
	require.ErrorIs(t, err, program.ErrInvalidAccountInput)
}

func TestMintLayoutRoundtrip(t *testing.T) {
	mint := &Mint{Authority: owner, Supply: 777, Decimals: 9}
	blob, err := EncodeMint(mint)
	require.NoError(t, err)
	require.Len(t, blob, MintLayoutSize)
	back, err := DecodeMint(blob)
	require.NoError(t, err)
	require.Equal(t, mint, back)
}
