package spltoken

import (
	"bytes"
	"encoding/binary"

	"github.com/gagliardetto/solana-go"

	"github.com/egaotan/solana-amm/program"
)

var (
	AccountLayoutSize = 72
	MintLayoutSize    = 48
)

// AccountLayout is the fixed little-endian blob of a token account.
type AccountLayout struct {
	Mint   solana.PublicKey
	Owner  solana.PublicKey
	Amount uint64
}

// MintLayout is the fixed little-endian blob of a mint.
type MintLayout struct {
	Authority solana.PublicKey
	Supply    uint64
	Decimals  uint8
	_         [7]byte
}

func encode(layout interface{}) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, layout); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeAccount serializes a token account state.
func EncodeAccount(a *Account) ([]byte, error) {
	return encode(&AccountLayout{Mint: a.Mint, Owner: a.Owner, Amount: uint64(a.Amount)})
}

// DecodeAccount loads a token account state from its blob.
func DecodeAccount(data []byte) (*Account, error) {
	var layout AccountLayout
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &layout); err != nil {
		return nil, program.ErrInvalidAccountInput
	}
	return &Account{Mint: layout.Mint, Owner: layout.Owner, Amount: program.TokenAmount(layout.Amount)}, nil
}

// EncodeMint serializes a mint state.
func EncodeMint(m *Mint) ([]byte, error) {
	return encode(&MintLayout{Authority: m.Authority, Supply: uint64(m.Supply), Decimals: m.Decimals})
}

// DecodeMint loads a mint state from its blob.
func DecodeMint(data []byte) (*Mint, error) {
	var layout MintLayout
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &layout); err != nil {
		return nil, program.ErrInvalidAccountInput
	}
	return &Mint{Authority: layout.Authority, Supply: program.TokenAmount(layout.Supply), Decimals: layout.Decimals}, nil
}
