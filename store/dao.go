package store

import (
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Dao struct {
	db *gorm.DB
}

func NewDao(url, scheme, user, passwd string) *Dao {
	dao := &Dao{}
	Logger := logger.Default
	Logger = Logger.LogMode(logger.Warn)
	db, err := gorm.Open(mysql.Open(user+":"+passwd+"@tcp("+url+")/"+
		scheme+"?charset=utf8&parseTime=true"), &gorm.Config{Logger: Logger})
	if err != nil {
		panic(err)
	}
	err = db.AutoMigrate(&SwapRecord{}, &LiquidityRecord{}, &HarvestClaimRecord{}, &SnapshotRecord{})
	if err != nil {
		panic(err)
	}
	dao.db = db
	return dao
}

func (dao *Dao) SaveSwap(rec *SwapRecord) error {
	return dao.db.Create(rec).Error
}

func (dao *Dao) SaveLiquidity(rec *LiquidityRecord) error {
	return dao.db.Create(rec).Error
}

func (dao *Dao) SaveHarvestClaim(rec *HarvestClaimRecord) error {
	return dao.db.Create(rec).Error
}

func (dao *Dao) SaveSnapshot(rec *SnapshotRecord) error {
	return dao.db.Create(rec).Error
}

func (dao *Dao) SelectSwaps(pool string) ([]*SwapRecord, error) {
	records := make([]*SwapRecord, 0)
	res := dao.db.Where("pool = ?", pool).Order("slot").Find(&records)
	return records, res.Error
}

func (dao *Dao) SelectLiquidity(pool string) ([]*LiquidityRecord, error) {
	records := make([]*LiquidityRecord, 0)
	res := dao.db.Where("pool = ?", pool).Order("slot").Find(&records)
	return records, res.Error
}

func (dao *Dao) SelectHarvestClaims(farmer string) ([]*HarvestClaimRecord, error) {
	records := make([]*HarvestClaimRecord, 0)
	res := dao.db.Where("farmer = ?", farmer).Order("slot").Find(&records)
	return records, res.Error
}

func (dao *Dao) SelectSnapshots(farm string) ([]*SnapshotRecord, error) {
	records := make([]*SnapshotRecord, 0)
	res := dao.db.Where("farm = ?", farm).Order("slot").Find(&records)
	return records, res.Error
}
