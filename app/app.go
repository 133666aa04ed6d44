// Package app hosts the pricing kernel behind an HTTP API: it owns the
// slot clock, the token ledger, the pool and farm registries and the
// discount table, serializes every state change and settles the token
// movements the kernel computes.
package app

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/egaotan/solana-amm/config"
	"github.com/egaotan/solana-amm/farming"
	"github.com/egaotan/solana-amm/logger"
	"github.com/egaotan/solana-amm/pool"
	"github.com/egaotan/solana-amm/program"
	"github.com/egaotan/solana-amm/spltoken"
	"github.com/egaotan/solana-amm/store"
)

type App struct {
	ctx        context.Context
	cfg        *config.Config
	log        zerolog.Logger
	ledger     *spltoken.Ledger
	store      *store.Store
	httpServer *http.Server

	slot uint64

	mu        sync.Mutex
	pools     map[solana.PublicKey]*pool.Pool
	farms     map[solana.PublicKey]*farming.Farm
	farmers   map[solana.PublicKey]map[solana.PublicKey]*farming.Farmer
	discounts map[solana.PublicKey]*program.Discount
}

func NewApp(ctx context.Context, cfg *config.Config, ledger *spltoken.Ledger, st *store.Store) *App {
	return &App{
		ctx:       ctx,
		cfg:       cfg,
		log:       logger.GetForComponent("app"),
		ledger:    ledger,
		store:     st,
		slot:      1,
		pools:     make(map[solana.PublicKey]*pool.Pool),
		farms:     make(map[solana.PublicKey]*farming.Farm),
		farmers:   make(map[solana.PublicKey]map[solana.PublicKey]*farming.Farmer),
		discounts: make(map[solana.PublicKey]*program.Discount),
	}
}

// Slot is the current logical clock reading.
func (a *App) Slot() program.Slot {
	return program.Slot(atomic.LoadUint64(&a.slot))
}

// AdvanceSlot moves the clock forward by n slots.
func (a *App) AdvanceSlot(n uint64) program.Slot {
	return program.Slot(atomic.AddUint64(&a.slot, n))
}

// Discount implements the discount registry lookup.
func (a *App) Discount(user solana.PublicKey) *program.Discount {
	if d, ok := a.discounts[user]; ok {
		return d
	}
	return nil
}

// Start wires the router, launches the HTTP server and the slot clock.
func (a *App) Start() {
	a.httpServer = &http.Server{
		Addr:    a.cfg.Listen,
		Handler: a.Router(),
	}
	a.log.Info().Str("listen", a.cfg.Listen).Msg("start rpc server")
	go func() {
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error().Err(err).Msg("ListenAndServe")
		}
	}()
	go a.clock()
}

// Router assembles the gin handler tree.
func (a *App) Router() http.Handler {
	router := gin.New()
	router.Use(gin.Recovery())
	g := router.Group("/api")
	g.GET("/slot", a.getSlot)
	g.POST("/slot/advance", a.advanceSlot)

	g.POST("/tokens", a.createToken)
	g.POST("/accounts", a.createAccount)
	g.POST("/accounts/:key/mint", a.faucet)
	g.GET("/accounts/:key", a.getAccount)

	g.POST("/discounts", a.putDiscount)

	g.POST("/pools", a.createPool)
	g.GET("/pools/:id", a.getPool)
	g.POST("/pools/:id/deposit", a.deposit)
	g.POST("/pools/:id/redeem", a.redeem)
	g.POST("/pools/:id/swap", a.swap)
	g.PUT("/pools/:id/swap-fee", a.setSwapFee)
	g.GET("/pools/:id/swaps", a.getSwaps)

	g.POST("/farms", a.createFarm)
	g.GET("/farms/:id", a.getFarm)
	g.POST("/farms/:id/snapshots", a.takeSnapshot)
	g.POST("/farms/:id/harvests", a.addHarvest)
	g.DELETE("/farms/:id/harvests/:mint", a.removeHarvest)
	g.POST("/farms/:id/harvests/:mint/periods", a.newHarvestPeriod)

	g.POST("/farms/:id/farmers", a.createFarmer)
	g.GET("/farms/:id/farmers/:authority", a.getFarmer)
	g.POST("/farms/:id/farmers/:authority/stake", a.stake)
	g.POST("/farms/:id/farmers/:authority/unstake", a.unstake)
	g.POST("/farms/:id/farmers/:authority/settle", a.settleFarmer)
	g.POST("/farms/:id/farmers/:authority/claim", a.claimHarvest)
	g.POST("/farms/:id/farmers/:authority/compound", a.compound)
	g.DELETE("/farms/:id/farmers/:authority", a.closeFarmer)
	return router
}

func (a *App) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.log.Error().Err(err).Msg("shutdown rpc server")
	}
	a.log.Info().Msg("rpc server has stopped")
}

func (a *App) clock() {
	ticker := time.NewTicker(time.Duration(a.cfg.SlotDurationMs) * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			atomic.AddUint64(&a.slot, 1)
		case <-a.ctx.Done():
			return
		}
	}
}

// status maps kernel sentinels onto HTTP codes: caller mistakes are 400,
// arithmetic and invariant failures 422.
func status(err error) int {
	switch {
	case errors.Is(err, program.ErrMathOverflow),
		errors.Is(err, program.ErrInvariantViolation):
		return http.StatusUnprocessableEntity
	case err != nil:
		return http.StatusBadRequest
	}
	return http.StatusOK
}

func abortWith(c *gin.Context, err error) {
	c.JSON(status(err), gin.H{"error": err.Error()})
}

func parseKey(c *gin.Context, raw string) (solana.PublicKey, bool) {
	key, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		abortWith(c, program.ErrInvalidAccountInput)
		return solana.PublicKey{}, false
	}
	return key, true
}

// uiAmount renders a raw amount at the mint's decimals for display.
func (a *App) uiAmount(mint solana.PublicKey, amount program.TokenAmount) string {
	exp := int32(0)
	if m := a.ledger.GetMint(mint); m != nil {
		exp = int32(m.Decimals)
	}
	return decimal.NewFromBigInt(new(big.Int).SetUint64(uint64(amount)), -exp).String()
}

func (a *App) getSlot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"slot": a.Slot()})
}

type advanceSlotRequest struct {
	By uint64 `json:"by"`
}

func (a *App) advanceSlot(c *gin.Context) {
	req := advanceSlotRequest{By: 1}
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		abortWith(c, program.ErrInvalidArg)
		return
	}
	c.JSON(http.StatusOK, gin.H{"slot": a.AdvanceSlot(req.By)})
}

type createTokenRequest struct {
	Mint      string `json:"mint"`
	Authority string `json:"authority"`
	Decimals  uint8  `json:"decimals"`
}

func (a *App) createToken(c *gin.Context) {
	var req createTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, program.ErrInvalidArg)
		return
	}
	mint, ok := parseKey(c, req.Mint)
	if !ok {
		return
	}
	authority, err := solana.PublicKeyFromBase58(req.Authority)
	if err != nil {
		authority = a.cfg.Admin
	}
	if err := a.ledger.CreateMint(mint, authority, req.Decimals); err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mint": mint})
}

type createAccountRequest struct {
	Key   string `json:"key"`
	Mint  string `json:"mint"`
	Owner string `json:"owner"`
}

func (a *App) createAccount(c *gin.Context) {
	var req createAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, program.ErrInvalidArg)
		return
	}
	key, ok := parseKey(c, req.Key)
	if !ok {
		return
	}
	mint, ok := parseKey(c, req.Mint)
	if !ok {
		return
	}
	owner, ok := parseKey(c, req.Owner)
	if !ok {
		return
	}
	if err := a.ledger.CreateAccount(key, mint, owner); err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": key})
}

type faucetRequest struct {
	Amount uint64 `json:"amount"`
}

func (a *App) faucet(c *gin.Context) {
	key, ok := parseKey(c, c.Param("key"))
	if !ok {
		return
	}
	var req faucetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, program.ErrInvalidArg)
		return
	}
	account := a.ledger.GetAccount(key)
	if account == nil {
		abortWith(c, program.ErrInvalidAccountInput)
		return
	}
	if err := a.ledger.Mint(account.Mint, key, program.TokenAmount(req.Amount)); err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": key, "amount": a.ledger.Balance(key)})
}

func (a *App) getAccount(c *gin.Context) {
	key, ok := parseKey(c, c.Param("key"))
	if !ok {
		return
	}
	account := a.ledger.GetAccount(key)
	if account == nil {
		abortWith(c, program.ErrInvalidAccountInput)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"account":   key,
		"mint":      account.Mint,
		"owner":     account.Owner,
		"amount":    account.Amount,
		"ui_amount": a.uiAmount(account.Mint, account.Amount),
	})
}

type putDiscountRequest struct {
	Admin      string `json:"admin"`
	User       string `json:"user"`
	ValidUntil uint64 `json:"valid_until"`
	Amount     uint64 `json:"amount"`
}

func (a *App) putDiscount(c *gin.Context) {
	var req putDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, program.ErrInvalidArg)
		return
	}
	admin, ok := parseKey(c, req.Admin)
	if !ok {
		return
	}
	if admin != a.cfg.Admin {
		abortWith(c, program.ErrInvalidAccountInput)
		return
	}
	user, ok := parseKey(c, req.User)
	if !ok {
		return
	}
	if req.Amount > program.PermillionScale {
		abortWith(c, program.ErrInvalidArg)
		return
	}
	a.mu.Lock()
	a.discounts[user] = &program.Discount{
		ValidUntil: program.Slot(req.ValidUntil),
		Amount:     program.Permillion(req.Amount),
	}
	a.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"user": user})
}
