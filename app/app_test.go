package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"github.com/egaotan/solana-amm/config"
	"github.com/egaotan/solana-amm/spltoken"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func key(b byte) solana.PublicKey {
	var k solana.PublicKey
	k[0] = b
	return k
}

var (
	adminKey   = key(1)
	signerKey  = key(2)
	lpMintKey  = key(3)
	tollKey    = key(4)
	mintA      = key(5)
	mintB      = key(6)
	vaultA     = key(7)
	vaultB     = key(8)
	userKey    = key(9)
	walletA    = key(10)
	walletB    = key(11)
	lpWallet   = key(12)
	farmKey    = key(20)
	stakeVault = key(21)
	rwdVault   = key(22)
	rwdWallet  = key(23)
	user2Key   = key(24)
)

func newTestApp() (*App, http.Handler) {
	cfg := &config.Config{
		Listen:                 ":0",
		Admin:                  adminKey,
		SlotDurationMs:         400,
		MinSnapshotWindowSlots: 1,
	}
	a := NewApp(context.Background(), cfg, spltoken.NewLedger(), nil)
	return a, a.Router()
}

func do(t *testing.T, router http.Handler, method, path string, body gin.H) (int, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	resp := make(map[string]interface{})
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w.Code, resp
}

func num(t *testing.T, resp map[string]interface{}, field string) uint64 {
	t.Helper()
	v, ok := resp[field].(float64)
	require.True(t, ok, "field %q missing in %v", field, resp)
	return uint64(v)
}

func createToken(t *testing.T, router http.Handler, mint solana.PublicKey) {
	t.Helper()
	code, _ := do(t, router, "POST", "/api/tokens", gin.H{"mint": mint.String(), "authority": adminKey.String(), "decimals": 0})
	require.Equal(t, http.StatusOK, code)
}

func createAccount(t *testing.T, router http.Handler, acc, mint, owner solana.PublicKey) {
	t.Helper()
	code, _ := do(t, router, "POST", "/api/accounts", gin.H{"key": acc.String(), "mint": mint.String(), "owner": owner.String()})
	require.Equal(t, http.StatusOK, code)
}

func faucet(t *testing.T, router http.Handler, acc solana.PublicKey, amount uint64) {
	t.Helper()
	code, _ := do(t, router, "POST", "/api/accounts/"+acc.String()+"/mint", gin.H{"amount": amount})
	require.Equal(t, http.StatusOK, code)
}

func balance(t *testing.T, router http.Handler, acc solana.PublicKey) uint64 {
	t.Helper()
	code, resp := do(t, router, "GET", "/api/accounts/"+acc.String(), nil)
	require.Equal(t, http.StatusOK, code)
	return num(t, resp, "amount")
}

func createTwoReservePool(t *testing.T, router http.Handler, swapFee uint64) {
	t.Helper()
	createToken(t, router, mintA)
	createToken(t, router, mintB)
	createAccount(t, router, walletA, mintA, userKey)
	createAccount(t, router, walletB, mintB, userKey)
	faucet(t, router, walletA, 100_000)
	faucet(t, router, walletB, 100_000)

	code, resp := do(t, router, "POST", "/api/pools", gin.H{
		"admin":       adminKey.String(),
		"signer":      signerKey.String(),
		"lp_mint":     lpMintKey.String(),
		"toll_wallet": tollKey.String(),
		"reserves": []gin.H{
			{"mint": mintA.String(), "vault": vaultA.String()},
			{"mint": mintB.String(), "vault": vaultB.String()},
		},
		"swap_fee": swapFee,
	})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, lpMintKey.String(), resp["pool"])

	createAccount(t, router, lpWallet, lpMintKey, userKey)
	code, resp = do(t, router, "POST", "/api/pools/"+lpMintKey.String()+"/deposit", gin.H{
		"user":      userKey.String(),
		"lp_wallet": lpWallet.String(),
		"wallets":   gin.H{mintA.String(): walletA.String(), mintB.String(): walletB.String()},
		"max_amounts": gin.H{
			mintA.String(): 20_000,
			mintB.String(): 20_000,
		},
	})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, uint64(20_000), num(t, resp, "lp_minted"))
}

func TestSlotEndpoints(t *testing.T) {
	_, router := newTestApp()
	code, resp := do(t, router, "GET", "/api/slot", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, uint64(1), num(t, resp, "slot"))

	code, resp = do(t, router, "POST", "/api/slot/advance", gin.H{"by": 5})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, uint64(6), num(t, resp, "slot"))
}

func TestPoolLifecycle(t *testing.T) {
	_, router := newTestApp()
	createTwoReservePool(t, router, 0)

	require.Equal(t, uint64(80_000), balance(t, router, walletA))
	require.Equal(t, uint64(20_000), balance(t, router, vaultA))
	require.Equal(t, uint64(20_000), balance(t, router, lpWallet))

	poolPath := "/api/pools/" + lpMintKey.String()
	code, resp := do(t, router, "GET", poolPath, nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, uint64(20_000), num(t, resp, "lp_supply"))
	curveInfo, ok := resp["curve"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "0", curveInfo["invariant"])

	// Slippage guard refuses before anything moves.
	code, resp = do(t, router, "POST", poolPath+"/swap", gin.H{
		"user":        userKey.String(),
		"sell_mint":   mintA.String(),
		"sell_amount": 9_100,
		"buy_mint":    mintB.String(),
		"min_buy":     7_000,
		"sell_wallet": walletA.String(),
		"buy_wallet":  walletB.String(),
	})
	require.Equal(t, http.StatusBadRequest, code)
	require.Contains(t, resp, "error")
	require.Equal(t, uint64(80_000), balance(t, router, walletA))

	code, resp = do(t, router, "POST", poolPath+"/swap", gin.H{
		"user":        userKey.String(),
		"sell_mint":   mintA.String(),
		"sell_amount": 9_100,
		"buy_mint":    mintB.String(),
		"min_buy":     6_254,
		"sell_wallet": walletA.String(),
		"buy_wallet":  walletB.String(),
	})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, uint64(6_254), num(t, resp, "bought"))
	require.Equal(t, uint64(0), num(t, resp, "fee"))
	require.Equal(t, uint64(0), num(t, resp, "toll_lp"))

	require.Equal(t, uint64(70_900), balance(t, router, walletA))
	require.Equal(t, uint64(86_254), balance(t, router, walletB))
	require.Equal(t, uint64(29_100), balance(t, router, vaultA))
	require.Equal(t, uint64(13_746), balance(t, router, vaultB))

	code, resp = do(t, router, "POST", poolPath+"/redeem", gin.H{
		"user":      userKey.String(),
		"lp_wallet": lpWallet.String(),
		"lp_amount": 20_000,
		"wallets":   gin.H{mintA.String(): walletA.String(), mintB.String(): walletB.String()},
		"min_amounts": gin.H{
			mintA.String(): 29_100,
			mintB.String(): 13_746,
		},
	})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, uint64(20_000), num(t, resp, "lp_burned"))
	require.Equal(t, uint64(0), balance(t, router, lpWallet))
	require.Equal(t, uint64(100_000), balance(t, router, walletA))
	require.Equal(t, uint64(100_000), balance(t, router, walletB))
}

func TestSwapFeeTollAndDiscount(t *testing.T) {
	_, router := newTestApp()
	createTwoReservePool(t, router, 10_000)
	poolPath := "/api/pools/" + lpMintKey.String()

	code, resp := do(t, router, "POST", poolPath+"/swap", gin.H{
		"user":        userKey.String(),
		"sell_mint":   mintA.String(),
		"sell_amount": 9_100,
		"buy_mint":    mintB.String(),
		"sell_wallet": walletA.String(),
		"buy_wallet":  walletB.String(),
	})
	require.Equal(t, http.StatusOK, code)
	// ceil(9_100 * 1%) = 91 fee; the curve prices the 9_009 net.
	require.Equal(t, uint64(91), num(t, resp, "fee"))
	require.Equal(t, uint64(6_211), num(t, resp, "bought"))
	// floor(20_000 * 91 / (3 * 4 * 29_009)) LP to the protocol.
	require.Equal(t, uint64(5), num(t, resp, "toll_lp"))
	require.Equal(t, uint64(5), balance(t, router, tollKey))
	// The vault keeps the whole sell amount, fee included.
	require.Equal(t, uint64(29_100), balance(t, router, vaultA))

	// Only the configured admin can grant discounts.
	code, _ = do(t, router, "POST", "/api/discounts", gin.H{
		"admin": user2Key.String(), "user": user2Key.String(), "valid_until": 1_000, "amount": 500_000,
	})
	require.Equal(t, http.StatusBadRequest, code)
	code, _ = do(t, router, "POST", "/api/discounts", gin.H{
		"admin": adminKey.String(), "user": user2Key.String(), "valid_until": 1_000, "amount": 500_000,
	})
	require.Equal(t, http.StatusOK, code)

	code, resp = do(t, router, "POST", poolPath+"/swap", gin.H{
		"user":        user2Key.String(),
		"sell_mint":   mintA.String(),
		"sell_amount": 9_100,
		"buy_mint":    mintB.String(),
		"sell_wallet": walletA.String(),
		"buy_wallet":  walletB.String(),
	})
	require.Equal(t, http.StatusOK, code)
	// Half the fee rate: ceil(9_100 * 1% * 50%) = 46.
	require.Equal(t, uint64(46), num(t, resp, "fee"))
}

func TestSetSwapFeeEndpoint(t *testing.T) {
	_, router := newTestApp()
	createTwoReservePool(t, router, 0)
	path := "/api/pools/" + lpMintKey.String() + "/swap-fee"

	code, _ := do(t, router, "PUT", path, gin.H{"admin": user2Key.String(), "fee": 5_000})
	require.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, router, "PUT", path, gin.H{"admin": adminKey.String(), "fee": 20_000})
	require.Equal(t, http.StatusBadRequest, code)

	code, resp := do(t, router, "PUT", path, gin.H{"admin": adminKey.String(), "fee": 5_000})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, uint64(5_000), num(t, resp, "swap_fee"))
}

func TestUnknownPoolIsRejected(t *testing.T) {
	_, router := newTestApp()
	code, resp := do(t, router, "GET", "/api/pools/"+key(99).String(), nil)
	require.Equal(t, http.StatusBadRequest, code)
	require.Contains(t, resp, "error")
}

func TestFarmLifecycle(t *testing.T) {
	_, router := newTestApp()
	createToken(t, router, mintA)
	createToken(t, router, mintB)
	createAccount(t, router, walletA, mintA, userKey)
	faucet(t, router, walletA, 1_000)

	code, _ := do(t, router, "POST", "/api/farms", gin.H{
		"farm":        farmKey.String(),
		"admin":       adminKey.String(),
		"stake_mint":  mintA.String(),
		"stake_vault": stakeVault.String(),
	})
	require.Equal(t, http.StatusOK, code)

	farmPath := "/api/farms/" + farmKey.String()
	code, _ = do(t, router, "POST", farmPath+"/farmers", gin.H{"authority": userKey.String()})
	require.Equal(t, http.StatusOK, code)

	farmerPath := farmPath + "/farmers/" + userKey.String()
	code, resp := do(t, router, "POST", farmerPath+"/stake", gin.H{"wallet": walletA.String(), "amount": 100})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, uint64(100), num(t, resp, "vested"))
	require.Equal(t, uint64(900), balance(t, router, walletA))
	require.Equal(t, uint64(100), balance(t, router, stakeVault))

	code, _ = do(t, router, "POST", "/api/slot/advance", gin.H{"by": 4})
	require.Equal(t, http.StatusOK, code)
	code, resp = do(t, router, "POST", farmPath+"/snapshots", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, uint64(5), num(t, resp, "started_at"))
	require.Equal(t, uint64(100), num(t, resp, "staked"))

	code, _ = do(t, router, "POST", farmPath+"/harvests", gin.H{
		"admin": adminKey.String(), "mint": mintB.String(), "vault": rwdVault.String(),
	})
	require.Equal(t, http.StatusOK, code)
	faucet(t, router, rwdVault, 10_000)
	code, _ = do(t, router, "POST", farmPath+"/harvests/"+mintB.String()+"/periods", gin.H{
		"admin": adminKey.String(), "starts_at": 5, "ends_at": 20, "tps": 10,
	})
	require.Equal(t, http.StatusOK, code)

	code, _ = do(t, router, "POST", "/api/slot/advance", gin.H{"by": 10})
	require.Equal(t, http.StatusOK, code)
	code, resp = do(t, router, "POST", farmerPath+"/settle", nil)
	require.Equal(t, http.StatusOK, code)
	// Promoted at the slot 5 snapshot, then 11 slots at tps 10 with the
	// whole stake.
	require.Equal(t, uint64(100), num(t, resp, "staked"))
	require.Equal(t, uint64(0), num(t, resp, "vested"))
	require.Equal(t, uint64(16), num(t, resp, "calculate_next_harvest_from"))

	createAccount(t, router, rwdWallet, mintB, userKey)
	code, resp = do(t, router, "POST", farmerPath+"/claim", gin.H{
		"mint": mintB.String(), "wallet": rwdWallet.String(),
	})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, uint64(110), num(t, resp, "amount"))
	require.Equal(t, uint64(110), balance(t, router, rwdWallet))

	code, resp = do(t, router, "POST", farmerPath+"/unstake", gin.H{"wallet": walletA.String(), "amount": 200})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, uint64(100), num(t, resp, "unstaked"))
	require.Equal(t, uint64(1_000), balance(t, router, walletA))

	code, _ = do(t, router, "DELETE", farmerPath, nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = do(t, router, "GET", farmerPath, nil)
	require.Equal(t, http.StatusBadRequest, code)
}

func TestRemoveHarvestRequiresEmptyVault(t *testing.T) {
	_, router := newTestApp()
	createToken(t, router, mintA)
	createToken(t, router, mintB)
	code, _ := do(t, router, "POST", "/api/farms", gin.H{
		"farm":        farmKey.String(),
		"admin":       adminKey.String(),
		"stake_mint":  mintA.String(),
		"stake_vault": stakeVault.String(),
	})
	require.Equal(t, http.StatusOK, code)

	farmPath := "/api/farms/" + farmKey.String()
	code, _ = do(t, router, "POST", farmPath+"/harvests", gin.H{
		"admin": adminKey.String(), "mint": mintB.String(), "vault": rwdVault.String(),
	})
	require.Equal(t, http.StatusOK, code)
	faucet(t, router, rwdVault, 10)

	code, _ = do(t, router, "DELETE", farmPath+"/harvests/"+mintB.String(), gin.H{"admin": adminKey.String()})
	require.Equal(t, http.StatusBadRequest, code)
}
