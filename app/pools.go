package app

import (
	"math/big"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/egaotan/solana-amm/curve"
	"github.com/egaotan/solana-amm/fixed"
	"github.com/egaotan/solana-amm/pool"
	"github.com/egaotan/solana-amm/program"
	"github.com/egaotan/solana-amm/store"
)

// undoStack collects the inverse of every applied token movement so a
// half-done operation can be unwound when a later movement fails.
type undoStack []func()

func (u *undoStack) push(fn func()) {
	*u = append(*u, fn)
}

func (u undoStack) rollback() {
	for i := len(u) - 1; i >= 0; i-- {
		u[i]()
	}
}

func invariantString(d fixed.Decimal) string {
	return decimal.NewFromBigInt(d.Scaled(), -fixed.FractionalDigits).String()
}

type createPoolReserve struct {
	Mint  string `json:"mint"`
	Vault string `json:"vault"`
}

type createPoolRequest struct {
	Admin      string              `json:"admin"`
	Signer     string              `json:"signer"`
	LpMint     string              `json:"lp_mint"`
	TollWallet string              `json:"toll_wallet"`
	Reserves   []createPoolReserve `json:"reserves"`
	Amplifier  uint64              `json:"amplifier"`
	SwapFee    uint64              `json:"swap_fee"`
}

// createPool assembles a pool keyed by its LP mint. The LP mint and the
// reserve vault accounts are created in the ledger here; reserve mints
// must already exist.
func (a *App) createPool(c *gin.Context) {
	var req createPoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, program.ErrInvalidArg)
		return
	}
	admin, ok := parseKey(c, req.Admin)
	if !ok {
		return
	}
	signer, ok := parseKey(c, req.Signer)
	if !ok {
		return
	}
	lpMint, ok := parseKey(c, req.LpMint)
	if !ok {
		return
	}
	tollWallet, ok := parseKey(c, req.TollWallet)
	if !ok {
		return
	}

	reserves := make([]pool.Reserve, 0, len(req.Reserves))
	for _, r := range req.Reserves {
		mint, ok := parseKey(c, r.Mint)
		if !ok {
			return
		}
		vault, ok := parseKey(c, r.Vault)
		if !ok {
			return
		}
		reserves = append(reserves, pool.Reserve{Mint: mint, Vault: vault})
	}

	kind := curve.NewConstantProduct()
	if req.Amplifier > 0 {
		kind = curve.NewStable(req.Amplifier)
	}
	p, err := pool.New(admin, signer, lpMint, tollWallet, reserves, kind, program.Permillion(req.SwapFee))
	if err != nil {
		abortWith(c, err)
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.pools[lpMint]; exists {
		abortWith(c, program.ErrInvalidAccountInput)
		return
	}
	if err := a.ledger.CreateMint(lpMint, signer, 0); err != nil {
		abortWith(c, err)
		return
	}
	if err := a.ledger.CreateAccount(tollWallet, lpMint, admin); err != nil {
		abortWith(c, err)
		return
	}
	for _, r := range reserves {
		if err := a.ledger.CreateAccount(r.Vault, r.Mint, signer); err != nil {
			abortWith(c, err)
			return
		}
	}
	a.pools[lpMint] = p
	a.log.Info().Str("pool", lpMint.String()).Uint64("dimension", p.Dimension).Msg("pool created")
	c.JSON(http.StatusOK, gin.H{"pool": lpMint})
}

func (a *App) lookupPool(c *gin.Context) (solana.PublicKey, *pool.Pool, bool) {
	id, ok := parseKey(c, c.Param("id"))
	if !ok {
		return solana.PublicKey{}, nil, false
	}
	p, ok := a.pools[id]
	if !ok {
		abortWith(c, program.ErrInvalidAccountInput)
		return solana.PublicKey{}, nil, false
	}
	return id, p, true
}

func (a *App) getPool(c *gin.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id, p, ok := a.lookupPool(c)
	if !ok {
		return
	}
	reserves := make([]gin.H, 0, p.Dimension)
	for i := range p.Reserves[:p.Dimension] {
		r := &p.Reserves[i]
		reserves = append(reserves, gin.H{
			"mint":      r.Mint,
			"vault":     r.Vault,
			"tokens":    r.Tokens,
			"ui_amount": a.uiAmount(r.Mint, r.Tokens),
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"pool":      id,
		"admin":     p.Admin,
		"lp_mint":   p.LpMint,
		"lp_supply": a.ledger.Supply(p.LpMint),
		"swap_fee":  p.SwapFee,
		"reserves":  reserves,
		"curve": gin.H{
			"kind":      p.Curve.Kind,
			"amplifier": p.Curve.Amplifier,
			"invariant": invariantString(p.Curve.Invariant),
		},
	})
}

type depositRequest struct {
	User       string            `json:"user"`
	LpWallet   string            `json:"lp_wallet"`
	Wallets    map[string]string `json:"wallets"`
	MaxAmounts map[string]uint64 `json:"max_amounts"`
}

func (a *App) deposit(c *gin.Context) {
	var req depositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, program.ErrInvalidArg)
		return
	}
	lpWallet, ok := parseKey(c, req.LpWallet)
	if !ok {
		return
	}
	wallets, ok := a.parseWalletMap(c, req.Wallets)
	if !ok {
		return
	}
	maxAmounts, ok := parseAmountMap(c, req.MaxAmounts)
	if !ok {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	id, p, ok := a.lookupPool(c)
	if !ok {
		return
	}
	lpSupply := a.ledger.Supply(p.LpMint)

	staged := *p
	result, err := staged.Deposit(maxAmounts, lpSupply)
	if err != nil {
		abortWith(c, err)
		return
	}

	var undo undoStack
	for mint, amount := range result.Deposits {
		wallet, vault := wallets[mint], p.Reserve(mint).Vault
		moved := amount
		if err := a.ledger.Transfer(wallet, vault, moved); err != nil {
			undo.rollback()
			abortWith(c, err)
			return
		}
		from, to := wallet, vault
		undo.push(func() { _ = a.ledger.Transfer(to, from, moved) })
	}
	if err := a.ledger.Mint(p.LpMint, lpWallet, result.LpMinted); err != nil {
		undo.rollback()
		abortWith(c, err)
		return
	}
	*p = staged

	a.recordLiquidity(id, req.User, "deposit", result.LpMinted, result.Deposits)
	c.JSON(http.StatusOK, gin.H{
		"lp_minted": result.LpMinted,
		"deposits":  amountMapResponse(result.Deposits),
		"invariant": invariantString(p.Curve.Invariant),
	})
}

type redeemRequest struct {
	User       string            `json:"user"`
	LpWallet   string            `json:"lp_wallet"`
	LpAmount   uint64            `json:"lp_amount"`
	Wallets    map[string]string `json:"wallets"`
	MinAmounts map[string]uint64 `json:"min_amounts"`
}

func (a *App) redeem(c *gin.Context) {
	var req redeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, program.ErrInvalidArg)
		return
	}
	lpWallet, ok := parseKey(c, req.LpWallet)
	if !ok {
		return
	}
	wallets, ok := a.parseWalletMap(c, req.Wallets)
	if !ok {
		return
	}
	minAmounts, ok := parseAmountMap(c, req.MinAmounts)
	if !ok {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	id, p, ok := a.lookupPool(c)
	if !ok {
		return
	}
	lpSupply := a.ledger.Supply(p.LpMint)
	lpBurn := program.TokenAmount(req.LpAmount)

	staged := *p
	out, err := staged.Redeem(lpBurn, minAmounts, lpSupply)
	if err != nil {
		abortWith(c, err)
		return
	}

	var undo undoStack
	if err := a.ledger.Burn(p.LpMint, lpWallet, lpBurn); err != nil {
		abortWith(c, err)
		return
	}
	undo.push(func() { _ = a.ledger.Mint(p.LpMint, lpWallet, lpBurn) })
	for mint, amount := range out {
		vault, wallet := p.Reserve(mint).Vault, wallets[mint]
		moved := amount
		if err := a.ledger.Transfer(vault, wallet, moved); err != nil {
			undo.rollback()
			abortWith(c, err)
			return
		}
		from, to := vault, wallet
		undo.push(func() { _ = a.ledger.Transfer(to, from, moved) })
	}
	*p = staged

	a.recordLiquidity(id, req.User, "redeem", lpBurn, out)
	c.JSON(http.StatusOK, gin.H{
		"lp_burned": lpBurn,
		"amounts":   amountMapResponse(out),
		"invariant": invariantString(p.Curve.Invariant),
	})
}

type swapRequest struct {
	User       string `json:"user"`
	SellMint   string `json:"sell_mint"`
	SellAmount uint64 `json:"sell_amount"`
	BuyMint    string `json:"buy_mint"`
	MinBuy     uint64 `json:"min_buy"`
	SellWallet string `json:"sell_wallet"`
	BuyWallet  string `json:"buy_wallet"`
}

func (a *App) swap(c *gin.Context) {
	var req swapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, program.ErrInvalidArg)
		return
	}
	user, ok := parseKey(c, req.User)
	if !ok {
		return
	}
	sellMint, ok := parseKey(c, req.SellMint)
	if !ok {
		return
	}
	buyMint, ok := parseKey(c, req.BuyMint)
	if !ok {
		return
	}
	sellWallet, ok := parseKey(c, req.SellWallet)
	if !ok {
		return
	}
	buyWallet, ok := parseKey(c, req.BuyWallet)
	if !ok {
		return
	}
	now := a.Slot()

	a.mu.Lock()
	defer a.mu.Unlock()
	id, p, ok := a.lookupPool(c)
	if !ok {
		return
	}

	discount := program.Permillion(0)
	if d := a.Discount(user); d.Valid(now) {
		discount = d.Amount
	}

	lpSupply := a.ledger.Supply(p.LpMint)
	staged := *p
	result, err := staged.Swap(sellMint, program.TokenAmount(req.SellAmount), buyMint, discount, lpSupply)
	if err != nil {
		abortWith(c, err)
		return
	}
	if result.Bought < program.TokenAmount(req.MinBuy) {
		abortWith(c, program.ErrSlippageExceeded)
		return
	}

	sellVault := p.Reserve(sellMint).Vault
	buyVault := p.Reserve(buyMint).Vault
	var undo undoStack
	if err := a.ledger.Transfer(sellWallet, sellVault, program.TokenAmount(req.SellAmount)); err != nil {
		abortWith(c, err)
		return
	}
	undo.push(func() { _ = a.ledger.Transfer(sellVault, sellWallet, program.TokenAmount(req.SellAmount)) })
	if err := a.ledger.Transfer(buyVault, buyWallet, result.Bought); err != nil {
		undo.rollback()
		abortWith(c, err)
		return
	}
	undo.push(func() { _ = a.ledger.Transfer(buyWallet, buyVault, result.Bought) })
	if result.TollLp > 0 {
		if err := a.ledger.Mint(p.LpMint, p.ProgramTollWallet, result.TollLp); err != nil {
			undo.rollback()
			abortWith(c, err)
			return
		}
	}
	*p = staged

	if a.store != nil {
		a.store.StoreSwap(&store.SwapRecord{
			Pool:       id.String(),
			User:       req.User,
			Slot:       uint64(now),
			SellMint:   sellMint.String(),
			SellAmount: req.SellAmount,
			BuyMint:    buyMint.String(),
			BuyAmount:  uint64(result.Bought),
			Fee:        uint64(result.Fee),
			TollLp:     uint64(result.TollLp),
			Time:       time.Now(),
		})
	}
	a.log.Info().
		Str("pool", id.String()).
		Uint64("sell", req.SellAmount).
		Uint64("bought", uint64(result.Bought)).
		Uint64("fee", uint64(result.Fee)).
		Msg("swap")
	c.JSON(http.StatusOK, gin.H{
		"bought":    result.Bought,
		"ui_bought": a.uiAmount(buyMint, result.Bought),
		"fee":       result.Fee,
		"toll_lp":   result.TollLp,
	})
}

type setSwapFeeRequest struct {
	Admin string `json:"admin"`
	Fee   uint64 `json:"fee"`
}

func (a *App) setSwapFee(c *gin.Context) {
	var req setSwapFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, program.ErrInvalidArg)
		return
	}
	admin, ok := parseKey(c, req.Admin)
	if !ok {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	id, p, ok := a.lookupPool(c)
	if !ok {
		return
	}
	if err := p.SetSwapFee(admin, program.Permillion(req.Fee)); err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pool": id, "swap_fee": p.SwapFee})
}

func (a *App) getSwaps(c *gin.Context) {
	id, ok := parseKey(c, c.Param("id"))
	if !ok {
		return
	}
	if a.store == nil {
		c.JSON(http.StatusOK, []*store.SwapRecord{})
		return
	}
	records, err := a.store.GetSwaps(id.String())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, records)
}

func (a *App) parseWalletMap(c *gin.Context, raw map[string]string) (map[solana.PublicKey]solana.PublicKey, bool) {
	out := make(map[solana.PublicKey]solana.PublicKey, len(raw))
	for mintRaw, walletRaw := range raw {
		mint, ok := parseKey(c, mintRaw)
		if !ok {
			return nil, false
		}
		wallet, ok := parseKey(c, walletRaw)
		if !ok {
			return nil, false
		}
		out[mint] = wallet
	}
	return out, true
}

func parseAmountMap(c *gin.Context, raw map[string]uint64) (map[solana.PublicKey]program.TokenAmount, bool) {
	out := make(map[solana.PublicKey]program.TokenAmount, len(raw))
	for mintRaw, amount := range raw {
		mint, err := solana.PublicKeyFromBase58(mintRaw)
		if err != nil {
			abortWith(c, program.ErrInvalidAccountInput)
			return nil, false
		}
		out[mint] = program.TokenAmount(amount)
	}
	return out, true
}

func amountMapResponse(amounts map[solana.PublicKey]program.TokenAmount) map[string]uint64 {
	out := make(map[string]uint64, len(amounts))
	for mint, amount := range amounts {
		out[mint.String()] = uint64(amount)
	}
	return out
}

func (a *App) recordLiquidity(id solana.PublicKey, user, kind string, lp program.TokenAmount, amounts map[solana.PublicKey]program.TokenAmount) {
	if a.store == nil {
		return
	}
	serialized := ""
	for mint, amount := range amounts {
		if serialized != "" {
			serialized += ","
		}
		serialized += mint.String() + ":" + decimal.NewFromBigInt(new(big.Int).SetUint64(uint64(amount)), 0).String()
	}
	a.store.StoreLiquidity(&store.LiquidityRecord{
		Pool:     id.String(),
		User:     user,
		Slot:     uint64(a.Slot()),
		Kind:     kind,
		LpAmount: uint64(lp),
		Amounts:  serialized,
		Time:     time.Now(),
	})
}
