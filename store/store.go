// Package store persists executed operations to mysql off the hot path:
// the app pushes records into buffered channels and a single goroutine
// drains them into gorm.
package store

import (
	"context"
)

type Store struct {
	ctx          context.Context
	swapChan     chan *SwapRecord
	liqChan      chan *LiquidityRecord
	claimChan    chan *HarvestClaimRecord
	snapshotChan chan *SnapshotRecord
	dao          *Dao
}

func NewStore(ctx context.Context, url, scheme, user, passwd string) *Store {
	s := &Store{
		ctx:          ctx,
		swapChan:     make(chan *SwapRecord, 32),
		liqChan:      make(chan *LiquidityRecord, 32),
		claimChan:    make(chan *HarvestClaimRecord, 32),
		snapshotChan: make(chan *SnapshotRecord, 32),
	}
	s.dao = NewDao(url, scheme, user, passwd)
	return s
}

func (s *Store) Start() {
	go s.store()
}

func (s *Store) Stop() {

}

func (s *Store) store() {
	for {
		select {
		case rec := <-s.swapChan:
			s.dao.SaveSwap(rec)
		case rec := <-s.liqChan:
			s.dao.SaveLiquidity(rec)
		case rec := <-s.claimChan:
			s.dao.SaveHarvestClaim(rec)
		case rec := <-s.snapshotChan:
			s.dao.SaveSnapshot(rec)
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Store) StoreSwap(rec *SwapRecord) {
	s.swapChan <- rec
}

func (s *Store) StoreLiquidity(rec *LiquidityRecord) {
	s.liqChan <- rec
}

func (s *Store) StoreHarvestClaim(rec *HarvestClaimRecord) {
	s.claimChan <- rec
}

func (s *Store) StoreSnapshot(rec *SnapshotRecord) {
	s.snapshotChan <- rec
}

func (s *Store) GetSwaps(pool string) ([]*SwapRecord, error) {
	return s.dao.SelectSwaps(pool)
}

func (s *Store) GetLiquidity(pool string) ([]*LiquidityRecord, error) {
	return s.dao.SelectLiquidity(pool)
}

func (s *Store) GetHarvestClaims(farmer string) ([]*HarvestClaimRecord, error) {
	return s.dao.SelectHarvestClaims(farmer)
}

func (s *Store) GetSnapshots(farm string) ([]*SnapshotRecord, error) {
	return s.dao.SelectSnapshots(farm)
}
