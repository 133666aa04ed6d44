package store

import (
	"time"
)

// SwapRecord is one executed swap.
type SwapRecord struct {
	Id         uint64 `gorm:"primaryKey;autoIncrement"`
	Pool       string `gorm:"index"`
	User       string `gorm:"index"`
	Slot       uint64
	SellMint   string
	SellAmount uint64
	BuyMint    string
	BuyAmount  uint64
	Fee        uint64
	TollLp     uint64
	Time       time.Time
}

// LiquidityRecord is one deposit or redeem; Kind distinguishes them.
type LiquidityRecord struct {
	Id       uint64 `gorm:"primaryKey;autoIncrement"`
	Pool     string `gorm:"index"`
	User     string `gorm:"index"`
	Slot     uint64
	Kind     string
	LpAmount uint64
	Amounts  string
	Time     time.Time
}

// HarvestClaimRecord is one reward payout to a farmer.
type HarvestClaimRecord struct {
	Id     uint64 `gorm:"primaryKey;autoIncrement"`
	Farm   string `gorm:"index"`
	Farmer string `gorm:"index"`
	Slot   uint64
	Mint   string
	Amount uint64
	Time   time.Time
}

// SnapshotRecord mirrors one ring sample for offline analysis.
type SnapshotRecord struct {
	Id     uint64 `gorm:"primaryKey;autoIncrement"`
	Farm   string `gorm:"index"`
	Slot   uint64
	Staked uint64
	Time   time.Time
}
