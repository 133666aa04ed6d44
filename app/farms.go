package app

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gagliardetto/solana-go"

	"github.com/egaotan/solana-amm/farming"
	"github.com/egaotan/solana-amm/program"
	"github.com/egaotan/solana-amm/store"
)

type createFarmRequest struct {
	Farm                   string `json:"farm"`
	Admin                  string `json:"admin"`
	StakeMint              string `json:"stake_mint"`
	StakeVault             string `json:"stake_vault"`
	MinSnapshotWindowSlots uint64 `json:"min_snapshot_window_slots"`
}

// createFarm registers a farm keyed by its account pubkey and opens the
// stake vault in the ledger. The stake mint must already exist.
func (a *App) createFarm(c *gin.Context) {
	var req createFarmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, program.ErrInvalidArg)
		return
	}
	key, ok := parseKey(c, req.Farm)
	if !ok {
		return
	}
	admin, ok := parseKey(c, req.Admin)
	if !ok {
		return
	}
	stakeMint, ok := parseKey(c, req.StakeMint)
	if !ok {
		return
	}
	stakeVault, ok := parseKey(c, req.StakeVault)
	if !ok {
		return
	}
	window := req.MinSnapshotWindowSlots
	if window == 0 {
		window = a.cfg.MinSnapshotWindowSlots
	}
	farm, err := farming.NewFarm(admin, stakeMint, stakeVault, window)
	if err != nil {
		abortWith(c, err)
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.farms[key]; exists {
		abortWith(c, program.ErrInvalidAccountInput)
		return
	}
	if err := a.ledger.CreateAccount(stakeVault, stakeMint, admin); err != nil {
		abortWith(c, err)
		return
	}
	a.farms[key] = farm
	a.farmers[key] = make(map[solana.PublicKey]*farming.Farmer)
	a.log.Info().Str("farm", key.String()).Str("stake_mint", stakeMint.String()).Msg("farm created")
	c.JSON(http.StatusOK, gin.H{"farm": key})
}

func (a *App) lookupFarm(c *gin.Context) (solana.PublicKey, *farming.Farm, bool) {
	id, ok := parseKey(c, c.Param("id"))
	if !ok {
		return solana.PublicKey{}, nil, false
	}
	farm, ok := a.farms[id]
	if !ok {
		abortWith(c, program.ErrInvalidAccountInput)
		return solana.PublicKey{}, nil, false
	}
	return id, farm, true
}

func (a *App) getFarm(c *gin.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id, farm, ok := a.lookupFarm(c)
	if !ok {
		return
	}
	harvests := make([]gin.H, 0, farming.MaxHarvestMints)
	for i := range farm.Harvests {
		h := &farm.Harvests[i]
		if !h.Initialized() {
			continue
		}
		periods := make([]gin.H, 0, farming.HarvestPeriodsLen)
		for _, p := range h.Periods {
			if !p.Initialized() {
				continue
			}
			periods = append(periods, gin.H{"starts_at": p.StartsAt, "ends_at": p.EndsAt, "tps": p.Tps})
		}
		harvests = append(harvests, gin.H{
			"mint":    h.Mint,
			"vault":   h.Vault,
			"balance": a.ledger.Balance(h.Vault),
			"periods": periods,
		})
	}
	newest := farm.Snapshots.Ring[farm.Snapshots.Tip]
	c.JSON(http.StatusOK, gin.H{
		"farm":        id,
		"admin":       farm.Admin,
		"stake_mint":  farm.StakeMint,
		"stake_vault": farm.StakeVault,
		"staked":      a.ledger.Balance(farm.StakeVault),
		"harvests":    harvests,
		"snapshot": gin.H{
			"started_at": newest.StartedAt,
			"staked":     newest.Staked,
		},
	})
}

func (a *App) takeSnapshot(c *gin.Context) {
	now := a.Slot()
	a.mu.Lock()
	defer a.mu.Unlock()
	id, farm, ok := a.lookupFarm(c)
	if !ok {
		return
	}
	staked := a.ledger.Balance(farm.StakeVault)
	if err := farm.TakeSnapshot(now, staked); err != nil {
		abortWith(c, err)
		return
	}
	if a.store != nil {
		a.store.StoreSnapshot(&store.SnapshotRecord{
			Farm:   id.String(),
			Slot:   uint64(now),
			Staked: uint64(staked),
			Time:   time.Now(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"started_at": now, "staked": staked})
}

type addHarvestRequest struct {
	Admin string `json:"admin"`
	Mint  string `json:"mint"`
	Vault string `json:"vault"`
}

func (a *App) addHarvest(c *gin.Context) {
	var req addHarvestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, program.ErrInvalidArg)
		return
	}
	admin, ok := parseKey(c, req.Admin)
	if !ok {
		return
	}
	mint, ok := parseKey(c, req.Mint)
	if !ok {
		return
	}
	vault, ok := parseKey(c, req.Vault)
	if !ok {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	id, farm, ok := a.lookupFarm(c)
	if !ok {
		return
	}
	staged := *farm
	if err := staged.AddHarvest(admin, mint, vault); err != nil {
		abortWith(c, err)
		return
	}
	if err := a.ledger.CreateAccount(vault, mint, admin); err != nil {
		abortWith(c, err)
		return
	}
	*farm = staged
	c.JSON(http.StatusOK, gin.H{"farm": id, "mint": mint, "vault": vault})
}

type removeHarvestRequest struct {
	Admin string `json:"admin"`
}

func (a *App) removeHarvest(c *gin.Context) {
	var req removeHarvestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, program.ErrInvalidArg)
		return
	}
	admin, ok := parseKey(c, req.Admin)
	if !ok {
		return
	}
	mint, ok := parseKey(c, c.Param("mint"))
	if !ok {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	id, farm, ok := a.lookupFarm(c)
	if !ok {
		return
	}
	balance := program.TokenAmount(0)
	if schedule := farm.HarvestSchedule(mint); schedule != nil {
		balance = a.ledger.Balance(schedule.Vault)
	}
	if err := farm.RemoveHarvest(admin, mint, balance); err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"farm": id, "mint": mint})
}

type newPeriodRequest struct {
	Admin    string `json:"admin"`
	StartsAt uint64 `json:"starts_at"`
	EndsAt   uint64 `json:"ends_at"`
	Tps      uint64 `json:"tps"`
}

func (a *App) newHarvestPeriod(c *gin.Context) {
	var req newPeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, program.ErrInvalidArg)
		return
	}
	admin, ok := parseKey(c, req.Admin)
	if !ok {
		return
	}
	mint, ok := parseKey(c, c.Param("mint"))
	if !ok {
		return
	}
	now := a.Slot()
	a.mu.Lock()
	defer a.mu.Unlock()
	id, farm, ok := a.lookupFarm(c)
	if !ok {
		return
	}
	replaced, err := farm.NewHarvestPeriod(admin, now, mint,
		program.Slot(req.StartsAt), program.Slot(req.EndsAt), program.TokenAmount(req.Tps))
	if err != nil {
		abortWith(c, err)
		return
	}
	resp := gin.H{"farm": id, "mint": mint, "starts_at": req.StartsAt, "ends_at": req.EndsAt, "tps": req.Tps}
	if replaced != nil {
		resp["replaced"] = gin.H{"starts_at": replaced.StartsAt, "ends_at": replaced.EndsAt, "tps": replaced.Tps}
	}
	c.JSON(http.StatusOK, resp)
}

type createFarmerRequest struct {
	Authority string `json:"authority"`
}

func (a *App) createFarmer(c *gin.Context) {
	var req createFarmerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, program.ErrInvalidArg)
		return
	}
	authority, ok := parseKey(c, req.Authority)
	if !ok {
		return
	}
	now := a.Slot()
	a.mu.Lock()
	defer a.mu.Unlock()
	id, _, ok := a.lookupFarm(c)
	if !ok {
		return
	}
	if _, exists := a.farmers[id][authority]; exists {
		abortWith(c, program.ErrInvalidAccountInput)
		return
	}
	farmer, err := farming.NewFarmer(authority, id, now)
	if err != nil {
		abortWith(c, err)
		return
	}
	a.farmers[id][authority] = farmer
	c.JSON(http.StatusOK, gin.H{"farm": id, "authority": authority})
}

func (a *App) lookupFarmer(c *gin.Context) (solana.PublicKey, *farming.Farm, *farming.Farmer, bool) {
	id, farm, ok := a.lookupFarm(c)
	if !ok {
		return solana.PublicKey{}, nil, nil, false
	}
	authority, ok := parseKey(c, c.Param("authority"))
	if !ok {
		return solana.PublicKey{}, nil, nil, false
	}
	farmer, ok := a.farmers[id][authority]
	if !ok {
		abortWith(c, program.ErrInvalidAccountInput)
		return solana.PublicKey{}, nil, nil, false
	}
	return id, farm, farmer, true
}

func farmerResponse(f *farming.Farmer) gin.H {
	harvests := make([]gin.H, 0, farming.MaxHarvestMints)
	for i := range f.Harvests {
		if f.Harvests[i].Mint.IsZero() {
			continue
		}
		harvests = append(harvests, gin.H{"mint": f.Harvests[i].Mint, "tokens": f.Harvests[i].Tokens})
	}
	return gin.H{
		"authority":                   f.Authority,
		"staked":                      f.Staked,
		"vested":                      f.Vested,
		"vested_at":                   f.VestedAt,
		"calculate_next_harvest_from": f.CalculateNextHarvestFrom,
		"harvests":                    harvests,
	}
}

func (a *App) getFarmer(c *gin.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, _, farmer, ok := a.lookupFarmer(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, farmerResponse(farmer))
}

type stakeRequest struct {
	Wallet string `json:"wallet"`
	Amount uint64 `json:"amount"`
}

func (a *App) stake(c *gin.Context) {
	var req stakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, program.ErrInvalidArg)
		return
	}
	wallet, ok := parseKey(c, req.Wallet)
	if !ok {
		return
	}
	now := a.Slot()
	a.mu.Lock()
	defer a.mu.Unlock()
	_, farm, farmer, ok := a.lookupFarmer(c)
	if !ok {
		return
	}
	staged := *farmer
	if err := staged.AddToVested(farm, now, program.TokenAmount(req.Amount)); err != nil {
		abortWith(c, err)
		return
	}
	if err := a.ledger.Transfer(wallet, farm.StakeVault, program.TokenAmount(req.Amount)); err != nil {
		abortWith(c, err)
		return
	}
	*farmer = staged
	c.JSON(http.StatusOK, farmerResponse(farmer))
}

type unstakeRequest struct {
	Wallet string `json:"wallet"`
	Amount uint64 `json:"amount"`
}

func (a *App) unstake(c *gin.Context) {
	var req unstakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, program.ErrInvalidArg)
		return
	}
	wallet, ok := parseKey(c, req.Wallet)
	if !ok {
		return
	}
	now := a.Slot()
	a.mu.Lock()
	defer a.mu.Unlock()
	_, farm, farmer, ok := a.lookupFarmer(c)
	if !ok {
		return
	}
	staged := *farmer
	actual, err := staged.Unstake(farm, now, program.TokenAmount(req.Amount))
	if err != nil {
		abortWith(c, err)
		return
	}
	if err := a.ledger.Transfer(farm.StakeVault, wallet, actual); err != nil {
		abortWith(c, err)
		return
	}
	*farmer = staged
	c.JSON(http.StatusOK, gin.H{"unstaked": actual, "farmer": farmerResponse(farmer)})
}

func (a *App) settleFarmer(c *gin.Context) {
	now := a.Slot()
	a.mu.Lock()
	defer a.mu.Unlock()
	_, farm, farmer, ok := a.lookupFarmer(c)
	if !ok {
		return
	}
	if err := farmer.UpdateEligibleHarvest(farm, now); err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, farmerResponse(farmer))
}

type claimRequest struct {
	Mint   string `json:"mint"`
	Wallet string `json:"wallet"`
}

func (a *App) claimHarvest(c *gin.Context) {
	var req claimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, program.ErrInvalidArg)
		return
	}
	mint, ok := parseKey(c, req.Mint)
	if !ok {
		return
	}
	wallet, ok := parseKey(c, req.Wallet)
	if !ok {
		return
	}
	now := a.Slot()
	a.mu.Lock()
	defer a.mu.Unlock()
	id, farm, farmer, ok := a.lookupFarmer(c)
	if !ok {
		return
	}
	schedule := farm.HarvestSchedule(mint)
	if schedule == nil {
		abortWith(c, program.ErrUnknownHarvestMint)
		return
	}
	staged := *farmer
	amount, err := staged.ClaimHarvest(farm, now, mint)
	if err != nil {
		abortWith(c, err)
		return
	}
	if amount > 0 {
		if err := a.ledger.Transfer(schedule.Vault, wallet, amount); err != nil {
			abortWith(c, err)
			return
		}
	}
	*farmer = staged
	if a.store != nil && amount > 0 {
		a.store.StoreHarvestClaim(&store.HarvestClaimRecord{
			Farm:   id.String(),
			Farmer: farmer.Authority.String(),
			Slot:   uint64(now),
			Mint:   mint.String(),
			Amount: uint64(amount),
			Time:   time.Now(),
		})
	}
	a.log.Info().
		Str("farm", id.String()).
		Str("mint", mint.String()).
		Uint64("amount", uint64(amount)).
		Msg("harvest claimed")
	c.JSON(http.StatusOK, gin.H{
		"mint":      mint,
		"amount":    amount,
		"ui_amount": a.uiAmount(mint, amount),
	})
}

func (a *App) compound(c *gin.Context) {
	now := a.Slot()
	a.mu.Lock()
	defer a.mu.Unlock()
	_, farm, farmer, ok := a.lookupFarmer(c)
	if !ok {
		return
	}
	schedule := farm.HarvestSchedule(farm.StakeMint)
	staged := *farmer
	amount, err := staged.Compound(farm, now)
	if err != nil {
		abortWith(c, err)
		return
	}
	if amount > 0 {
		if err := a.ledger.Transfer(schedule.Vault, farm.StakeVault, amount); err != nil {
			abortWith(c, err)
			return
		}
	}
	*farmer = staged
	c.JSON(http.StatusOK, gin.H{"compounded": amount, "farmer": farmerResponse(farmer)})
}

func (a *App) closeFarmer(c *gin.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id, _, farmer, ok := a.lookupFarmer(c)
	if !ok {
		return
	}
	if err := farmer.Close(); err != nil {
		abortWith(c, err)
		return
	}
	delete(a.farmers[id], farmer.Authority)
	c.JSON(http.StatusOK, gin.H{"closed": farmer.Authority})
}
