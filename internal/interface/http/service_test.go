package httpservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cosmossdk.io/math"
	"github.com/Flowerbox-Finance/Flowerbox-Finance/internal/core/application"
	manualclock "github.com/Flowerbox-Finance/Flowerbox-Finance/internal/infrastructure/clock/manual"
	"github.com/Flowerbox-Finance/Flowerbox-Finance/internal/infrastructure/db"
	inmemoryledger "github.com/Flowerbox-Finance/Flowerbox-Finance/internal/infrastructure/ledger/inmemory"
	simulatedstrategy "github.com/Flowerbox-Finance/Flowerbox-Finance/internal/infrastructure/strategy/simulated"
	"github.com/Flowerbox-Finance/Flowerbox-Finance/pkg/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	factoryAddress   = common.HexToAddress("0xfa").Hex()
	authorityAddress = common.HexToAddress("0xab").Hex()
	admin            = common.HexToAddress("0xad").Hex()
	tokenMinter      = common.HexToAddress("0xf1").Hex()
	rewardsPool      = common.HexToAddress("0xe1").Hex()
	creator          = common.HexToAddress("0xc1").Hex()
	investor         = common.HexToAddress("0xd2").Hex()
)

type testServer struct {
	public *echo.Echo
	admin  *echo.Echo
	clock  *manualclock.Clock
}

func newTestServer(t *testing.T, cfg Config) *testServer {
	t.Helper()
	ctx := context.Background()

	repoManager, err := db.NewService(db.ServiceConfig{
		EventStoreType:   "badger",
		DataStoreType:    "badger",
		EventStoreConfig: []interface{}{"", nil},
		DataStoreConfig:  []interface{}{"", nil},
	})
	require.NoError(t, err)

	ledger := inmemoryledger.NewLedger()
	require.NoError(t, ledger.SetMinter(ctx, "yCRV", tokenMinter))
	require.NoError(t, ledger.Mint(ctx, "yCRV", tokenMinter, rewardsPool, math.NewInt(100000)))

	clock := manualclock.NewClock(100)
	strategy, err := simulatedstrategy.NewStrategy(ctx, ledger, clock, simulatedstrategy.Config{
		UnderlyingAsset: "yCRV",
		ShareAsset:      "yvCRV",
		YieldSource:     rewardsPool,
		YieldRate:       decimal.RequireFromString("0.001"),
	})
	require.NoError(t, err)
	provider, err := simulatedstrategy.NewProvider(strategy)
	require.NoError(t, err)

	mintAuthority, err := application.NewMintAuthorityService(
		repoManager, ledger, authorityAddress, admin, "PETALS", []string{factoryAddress},
	)
	require.NoError(t, err)
	require.NoError(t, mintAuthority.Start())

	vaultSvc, err := application.NewService(
		repoManager, ledger, provider, clock, mintAuthority, factoryAddress,
		decimal.RequireFromString("0.2"), decimal.RequireFromString("0.001"),
	)
	require.NoError(t, err)
	require.NoError(t, vaultSvc.Start())
	t.Cleanup(vaultSvc.Stop)

	h := newHandler(
		"test", vaultSvc, application.NewLedgerService(ledger, "PETALS", "yvCRV"), mintAuthority,
	)
	public, adminServer := newServers(h, cfg, admin)
	if adminServer == nil {
		adminServer = public
	}
	return &testServer{public, adminServer, clock}
}

func doRequest(
	t *testing.T, e *echo.Echo, method, path, identity string, body any,
) *httptest.ResponseRecorder {
	t.Helper()

	var reqBody bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&reqBody).Encode(body))
	}
	req := httptest.NewRequest(method, path, &reqBody)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if identity != "" {
		req.Header.Set(identityHeader, identity)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var resp T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func requireError(
	t *testing.T, rec *httptest.ResponseRecorder, status int, name string,
) errorResponse {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	resp := decode[errorResponse](t, rec)
	require.Equal(t, name, resp.Name)
	require.NotEmpty(t, resp.Message)
	return resp
}

func (s *testServer) fund(t *testing.T, holder, spender string, amount string) {
	t.Helper()
	rec := doRequest(t, s.admin, http.MethodPost, "/v1/admin/ledger/yCRV/faucet", admin,
		faucetRequest{Recipient: holder, Amount: amount})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doRequest(t, s.public, http.MethodPost, "/v1/ledger/yCRV/approve", holder,
		approveRequest{Spender: spender, Amount: amount})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
}

func TestVaultRoutes(t *testing.T) {
	s := newTestServer(t, Config{Port: 7080, AdminPort: 7081})

	rec := doRequest(t, s.public, http.MethodGet, "/v1/vaults/last", "", nil)
	requireError(t, rec, http.StatusNotFound, errors.NO_VAULT_CREATED_YET.Name)

	rec = doRequest(t, s.public, http.MethodGet, "/v1/info", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	info := decode[infoResponse](t, rec)
	require.Equal(t, "test", info.Version)
	require.Equal(t, factoryAddress, info.FactoryAddress)
	require.Equal(t, authorityAddress, info.MintAuthorityAddress)
	require.Equal(t, "PETALS", info.IncentiveToken)
	require.Equal(t, int64(100), info.CurrentHeight)
	require.Equal(t, "0.2", info.DefaultYieldSplit)
	require.Zero(t, info.VaultsCount)

	t.Run("invalid create", func(t *testing.T) {
		rec := doRequest(t, s.public, http.MethodPost, "/v1/vaults", "", createVaultRequest{
			CreatorDeposit:     "abc",
			InvestorDeposit:    "2000",
			LockDuration:       100,
			UnderlyingAsset:    "yCRV",
			StrategyShareAsset: "yvCRV",
			RewardsPool:        rewardsPool,
		})
		resp := requireError(t, rec, http.StatusBadRequest, errors.INVALID_PARAMETERS.Name)
		require.Equal(t, "creator_deposit", resp.Metadata["field"])

		rec = doRequest(t, s.public, http.MethodPost, "/v1/vaults", "", createVaultRequest{
			CreatorDeposit:     "500",
			InvestorDeposit:    "2000",
			LockDuration:       0,
			UnderlyingAsset:    "yCRV",
			StrategyShareAsset: "yvCRV",
			RewardsPool:        rewardsPool,
		})
		requireError(t, rec, http.StatusBadRequest, errors.INVALID_PARAMETERS.Name)
	})

	rec = doRequest(t, s.public, http.MethodPost, "/v1/vaults", "", createVaultRequest{
		CreatorDeposit:     "500",
		InvestorDeposit:    "2000",
		LockDuration:       100,
		UnderlyingAsset:    "yCRV",
		StrategyShareAsset: "yvCRV",
		RewardsPool:        rewardsPool,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[vaultResponse](t, rec)
	require.Equal(t, "Created", created.State)
	require.Equal(t, uint8(1), created.StateCode)
	require.Equal(t, "500", created.CreatorDeposit)
	require.Equal(t, "0", created.StrategyPosition)
	require.NotEmpty(t, created.Address)

	rec = doRequest(t, s.public, http.MethodGet, "/v1/vaults/last", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, created.Id, decode[vaultResponse](t, rec).Id)

	rec = doRequest(t, s.public, http.MethodGet, "/v1/vaults/"+created.Address, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, created.Id, decode[vaultResponse](t, rec).Id)

	rec = doRequest(
		t, s.public, http.MethodGet, "/v1/vaults/"+strings.ToLower(created.Address), "", nil,
	)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, created.Id, decode[vaultResponse](t, rec).Id)

	rec = doRequest(t, s.public, http.MethodGet, "/v1/vaults/unknown", "", nil)
	requireError(t, rec, http.StatusNotFound, errors.VAULT_NOT_FOUND.Name)

	vaultPath := fmt.Sprintf("/v1/vaults/%s", created.Id)
	s.fund(t, creator, created.Address, "500")

	rec = doRequest(t, s.public, http.MethodPost, vaultPath+"/deposit-creator", creator,
		depositCreatorRequest{AutoCompound: false})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	waiting := decode[vaultResponse](t, rec)
	require.Equal(t, "WaitingForMatch", waiting.State)
	require.Equal(t, uint8(2), waiting.StateCode)
	require.Equal(t, creator, waiting.Creator)

	rec = doRequest(t, s.public, http.MethodPost, vaultPath+"/deposit-creator", creator, nil)
	requireError(t, rec, http.StatusBadRequest, errors.WRONG_STATE.Name)

	rec = doRequest(t, s.public, http.MethodPost, vaultPath+"/withdraw-no-match", investor, nil)
	requireError(t, rec, http.StatusForbidden, errors.NOT_CREATOR.Name)

	s.fund(t, investor, created.Address, "2000")
	rec = doRequest(t, s.public, http.MethodPost, vaultPath+"/deposit-investor", investor, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	matched := decode[vaultResponse](t, rec)
	require.Equal(t, "Matched", matched.State)
	require.Equal(t, uint8(4), matched.StateCode)
	require.Equal(t, int64(200), matched.MaturityHeight)
	require.False(t, matched.IsSettleable)
	require.Equal(t, "2500", matched.StrategyPosition)

	rec = doRequest(t, s.public, http.MethodPost, vaultPath+"/settle", investor, nil)
	resp := requireError(t, rec, http.StatusBadRequest, errors.LOCK_NOT_ELAPSED.Name)
	require.Equal(t, "200", resp.Metadata["maturity_height"])

	s.clock.Advance(100)
	rec = doRequest(t, s.public, http.MethodGet, vaultPath, "", nil)
	require.True(t, decode[vaultResponse](t, rec).IsSettleable)

	rec = doRequest(t, s.public, http.MethodPost, vaultPath+"/settle", investor, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	settled := decode[vaultResponse](t, rec)
	require.Equal(t, "Settled", settled.State)
	require.Equal(t, uint8(5), settled.StateCode)
	require.NotNil(t, settled.Settlement)
	require.Equal(t, "2750", settled.Settlement.Proceeds)
	require.Equal(t, "2200", settled.Settlement.InvestorPayout)
	require.Equal(t, "550", settled.Settlement.CreatorPayout)
	require.Equal(t, "200", settled.Settlement.InvestorReward)
	require.Equal(t, "50", settled.Settlement.CreatorReward)

	rec = doRequest(t, s.public, http.MethodPost, vaultPath+"/settle", creator, nil)
	requireError(t, rec, http.StatusBadRequest, errors.WRONG_STATE.Name)

	rec = doRequest(t, s.public, http.MethodGet, "/v1/ledger/PETALS/balances/"+investor, "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	bal := decode[balanceResponse](t, rec)
	require.Equal(t, "200", bal.Amount)
	require.Equal(t, "250", bal.TotalSupply)

	rec = doRequest(t, s.public, http.MethodGet, "/v1/ledger/yCRV/balances/"+creator, "", nil)
	require.Equal(t, "550", decode[balanceResponse](t, rec).Amount)

	t.Run("list", func(t *testing.T) {
		rec := doRequest(t, s.public, http.MethodGet, "/v1/vaults?state=Settled", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, decode[listVaultsResponse](t, rec).Vaults, 1)

		rec = doRequest(t, s.public, http.MethodGet, "/v1/vaults?state=Created,Matched", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Empty(t, decode[listVaultsResponse](t, rec).Vaults)

		rec = doRequest(t, s.public, http.MethodGet, "/v1/vaults", "", nil)
		require.Len(t, decode[listVaultsResponse](t, rec).Vaults, 1)

		rec = doRequest(t, s.public, http.MethodGet, "/v1/vaults?state=Paused", "", nil)
		requireError(t, rec, http.StatusBadRequest, errors.INVALID_PARAMETERS.Name)
	})
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t, Config{Port: 7080, AdminPort: 7081})

	// Admin routes live on the admin server only.
	rec := doRequest(t, s.public, http.MethodGet, "/v1/admin/mint-authority", admin, nil)
	requireError(t, rec, http.StatusNotFound, "NOT_FOUND")

	rec = doRequest(t, s.admin, http.MethodGet, "/v1/admin/mint-authority", "", nil)
	requireError(t, rec, http.StatusForbidden, errors.NOT_ADMIN.Name)
	rec = doRequest(t, s.admin, http.MethodGet, "/v1/admin/mint-authority", creator, nil)
	requireError(t, rec, http.StatusForbidden, errors.NOT_ADMIN.Name)

	// The identity header is case insensitive.
	rec = doRequest(t, s.admin, http.MethodGet, "/v1/admin/mint-authority",
		"0x00000000000000000000000000000000000000ad", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	authority := decode[mintAuthorityResponse](t, rec)
	require.Equal(t, authorityAddress, authority.Address)
	require.Equal(t, admin, authority.Admin)
	require.Equal(t, []string{factoryAddress}, authority.Whitelist)
	require.Equal(t, authorityAddress, authority.MinterSources["PETALS"])

	lowerAdmin := strings.ToLower(admin)
	rec = doRequest(t, s.admin, http.MethodPost, "/v1/admin/mint-authority/whitelist", lowerAdmin,
		whitelistFactoryRequest{Factory: strings.ToLower(factoryAddress), Approved: false})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Empty(t, decode[mintAuthorityResponse](t, rec).Whitelist)

	rec = doRequest(t, s.admin, http.MethodPost, "/v1/admin/mint-authority/whitelist", lowerAdmin,
		whitelistFactoryRequest{Factory: factoryAddress, Approved: true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, []string{factoryAddress}, decode[mintAuthorityResponse](t, rec).Whitelist)

	rec = doRequest(t, s.admin, http.MethodPost, "/v1/admin/mint-authority/whitelist", admin,
		whitelistFactoryRequest{Factory: factoryAddress, Approved: false})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Empty(t, decode[mintAuthorityResponse](t, rec).Whitelist)

	rec = doRequest(t, s.admin, http.MethodPost, "/v1/admin/mint-authority/whitelist", admin,
		whitelistFactoryRequest{Factory: "factory", Approved: true})
	requireError(t, rec, http.StatusBadRequest, errors.INVALID_PARAMETERS.Name)

	rec = doRequest(t, s.admin, http.MethodPost, "/v1/admin/mint-authority/minter-source", lowerAdmin,
		setMinterSourceRequest{Token: "PETALS", Minter: strings.ToLower(tokenMinter)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, tokenMinter, decode[mintAuthorityResponse](t, rec).MinterSources["PETALS"])

	t.Run("faucet", func(t *testing.T) {
		rec := doRequest(t, s.admin, http.MethodPost, "/v1/admin/ledger/yCRV/faucet", admin,
			faucetRequest{Recipient: creator, Amount: "42"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		bal := decode[balanceResponse](t, rec)
		require.Equal(t, creator, bal.Holder)
		require.Equal(t, "42", bal.Amount)
		require.Equal(t, "100042", bal.TotalSupply)

		rec = doRequest(t, s.admin, http.MethodPost, "/v1/admin/ledger/PETALS/faucet", admin,
			faucetRequest{Recipient: creator, Amount: "42"})
		requireError(t, rec, http.StatusBadRequest, errors.INVALID_PARAMETERS.Name)

		rec = doRequest(t, s.admin, http.MethodPost, "/v1/admin/ledger/yCRV/faucet", admin,
			faucetRequest{Recipient: creator, Amount: "-1"})
		requireError(t, rec, http.StatusBadRequest, errors.INVALID_PARAMETERS.Name)
	})
}

func TestSharedPort(t *testing.T) {
	s := newTestServer(t, Config{Port: 7080, AdminPort: 7080, NoLedgerFaucet: true})
	require.Equal(t, s.public, s.admin)

	rec := doRequest(t, s.public, http.MethodGet, "/v1/admin/mint-authority", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doRequest(t, s.public, http.MethodPost, "/v1/admin/ledger/yCRV/faucet", admin,
		faucetRequest{Recipient: creator, Amount: "42"})
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, s.public, http.MethodGet, "/v1/ledger/height", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, int64(100), decode[heightResponse](t, rec).Height)
}

func TestErrorHandling(t *testing.T) {
	t.Run("panic", func(t *testing.T) {
		e := newEcho()
		e.GET("/panic", func(c echo.Context) error {
			panic("boom")
		})

		rec := doRequest(t, e, http.MethodGet, "/panic", "", nil)
		resp := requireError(t, rec, http.StatusInternalServerError, errors.INTERNAL_ERROR.Name)
		assert.Contains(t, resp.Message, "something went wrong")
	})

	t.Run("untyped error", func(t *testing.T) {
		e := newEcho()
		e.GET("/fail", func(c echo.Context) error {
			return fmt.Errorf("db is down")
		})

		rec := doRequest(t, e, http.MethodGet, "/fail", "", nil)
		resp := requireError(t, rec, http.StatusInternalServerError, errors.INTERNAL_ERROR.Name)
		assert.Equal(t, "db is down", resp.Message)
	})

	t.Run("invalid body", func(t *testing.T) {
		s := newTestServer(t, Config{Port: 7080})
		req := httptest.NewRequest(
			http.MethodPost, "/v1/vaults", bytes.NewBufferString("{not json"),
		)
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		s.public.ServeHTTP(rec, req)
		requireError(t, rec, http.StatusBadRequest, errors.INVALID_PARAMETERS.Name)
	})

	t.Run("status mapping", func(t *testing.T) {
		tests := []struct {
			err    error
			status int
		}{
			{errors.INVALID_PARAMETERS.New("bad"), http.StatusBadRequest},
			{errors.WRONG_STATE.New("bad"), http.StatusBadRequest},
			{errors.NOT_CREATOR.New("bad"), http.StatusForbidden},
			{errors.VAULT_NOT_FOUND.New("bad"), http.StatusNotFound},
			{errors.TRANSFER_FAILED.New("bad"), http.StatusConflict},
			{errors.INTERNAL_ERROR.New("bad"), http.StatusInternalServerError},
			{echo.ErrMethodNotAllowed, http.StatusMethodNotAllowed},
		}
		for _, tt := range tests {
			status, _ := toErrorResponse(tt.err)
			assert.Equal(t, tt.status, status, tt.err.Error())
		}
	})
}
