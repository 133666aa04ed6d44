package pool

import (
	"bytes"
	"encoding/binary"

	"github.com/gagliardetto/solana-go"

	"github.com/egaotan/solana-amm/curve"
	"github.com/egaotan/solana-amm/fixed"
	"github.com/egaotan/solana-amm/program"
)

// Fixed little-endian account blob. Arrays are always serialized at full
// capacity with zero padding; an unused reserve is recognized by its zero
// mint.
var (
	PoolLayoutSize = 4*32 + 8 + MaxReserves*(32+32+8) + (1 + 8 + InvariantLayoutSize) + 8
)

// InvariantLayoutSize is the byte width of the serialized D192 scaled
// representation.
const InvariantLayoutSize = 24

type ReserveLayout struct {
	Mint   solana.PublicKey
	Vault  solana.PublicKey
	Tokens uint64
}

type CurveLayout struct {
	Kind      uint8
	Amplifier uint64
	Invariant [InvariantLayoutSize]byte
}

type PoolLayout struct {
	Admin             solana.PublicKey
	Signer            solana.PublicKey
	LpMint            solana.PublicKey
	ProgramTollWallet solana.PublicKey
	Dimension         uint64
	Reserves          [MaxReserves]ReserveLayout
	Curve             CurveLayout
	SwapFee           uint64
}

func invariantToBytes(d fixed.Decimal) [InvariantLayoutSize]byte {
	var out [InvariantLayoutSize]byte
	var buf [InvariantLayoutSize]byte
	d.Scaled().FillBytes(buf[:])
	for i := range buf {
		out[i] = buf[InvariantLayoutSize-1-i]
	}
	return out
}

func invariantFromBytes(raw [InvariantLayoutSize]byte) (fixed.Decimal, error) {
	var buf [InvariantLayoutSize]byte
	for i := range raw {
		buf[i] = raw[InvariantLayoutSize-1-i]
	}
	return fixed.D192FromScaledBytes(buf[:])
}

// Encode serializes the pool into its fixed-size blob.
func (p *Pool) Encode() ([]byte, error) {
	layout := PoolLayout{
		Admin:             p.Admin,
		Signer:            p.Signer,
		LpMint:            p.LpMint,
		ProgramTollWallet: p.ProgramTollWallet,
		Dimension:         p.Dimension,
		Curve: CurveLayout{
			Kind:      uint8(p.Curve.Kind),
			Amplifier: p.Curve.Amplifier,
			Invariant: invariantToBytes(p.Curve.Invariant),
		},
		SwapFee: uint64(p.SwapFee),
	}
	for i, r := range p.Reserves {
		layout.Reserves[i] = ReserveLayout{Mint: r.Mint, Vault: r.Vault, Tokens: uint64(r.Tokens)}
	}
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, &layout); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode loads a pool from its fixed-size blob.
func Decode(data []byte) (*Pool, error) {
	var layout PoolLayout
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &layout); err != nil {
		return nil, program.ErrInvalidAccountInput
	}
	if layout.Dimension < MinReserves || layout.Dimension > MaxReserves {
		return nil, program.ErrInvalidAccountInput
	}
	invariant, err := invariantFromBytes(layout.Curve.Invariant)
	if err != nil {
		return nil, err
	}
	p := &Pool{
		Admin:             layout.Admin,
		Signer:            layout.Signer,
		LpMint:            layout.LpMint,
		ProgramTollWallet: layout.ProgramTollWallet,
		Dimension:         layout.Dimension,
		Curve: curve.Curve{
			Kind:      curve.Kind(layout.Curve.Kind),
			Amplifier: layout.Curve.Amplifier,
			Invariant: invariant,
		},
		SwapFee: program.Permillion(layout.SwapFee),
	}
	for i, r := range layout.Reserves {
		p.Reserves[i] = Reserve{Mint: r.Mint, Vault: r.Vault, Tokens: program.TokenAmount(r.Tokens)}
	}
	return p, nil
}
