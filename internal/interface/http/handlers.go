package httpservice

import (
	"net/http"

	"github.com/Flowerbox-Finance/Flowerbox-Finance/internal/core/application"
	"github.com/labstack/echo/v4"
)

type handler struct {
	version       string
	vaultSvc      application.VaultService
	ledgerSvc     application.LedgerService
	mintAuthority application.MintAuthorityService
}

func newHandler(
	version string, vaultSvc application.VaultService,
	ledgerSvc application.LedgerService, mintAuthority application.MintAuthorityService,
) *handler {
	return &handler{version, vaultSvc, ledgerSvc, mintAuthority}
}

func (h *handler) registerPublicRoutes(g *echo.Group) {
	g.GET("/info", h.getInfo)
	g.GET("/ledger/height", h.getCurrentHeight)

	g.POST("/vaults", h.createVault)
	g.GET("/vaults", h.listVaults)
	g.GET("/vaults/last", h.getLastVaultCreated)
	g.GET("/vaults/:id", h.getVault)
	g.POST("/vaults/:id/deposit-creator", h.depositCreator)
	g.POST("/vaults/:id/deposit-investor", h.depositInvestor)
	g.POST("/vaults/:id/withdraw-no-match", h.withdrawNoMatch)
	g.POST("/vaults/:id/settle", h.settle)

	g.GET("/ledger/:token/balances/:holder", h.getBalance)
	g.POST("/ledger/:token/approve", h.approve)
}

func (h *handler) registerAdminRoutes(g *echo.Group, withFaucet bool) {
	g.GET("/mint-authority", h.getMintAuthority)
	g.POST("/mint-authority/minter-source", h.setMinterSource)
	g.POST("/mint-authority/whitelist", h.whitelistFactory)
	if withFaucet {
		g.POST("/ledger/:token/faucet", h.faucet)
	}
}

func (h *handler) getInfo(c echo.Context) error {
	info, err := h.vaultSvc.GetInfo(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, infoResponse{
		Version:              h.version,
		FactoryAddress:       info.FactoryAddress,
		MintAuthorityAddress: info.MintAuthorityAddress,
		IncentiveToken:       info.IncentiveToken,
		CurrentHeight:        info.CurrentHeight,
		DefaultYieldSplit:    info.DefaultYieldSplit.String(),
		DefaultRewardRate:    info.DefaultRewardRate.String(),
		VaultsCount:          info.VaultsCount,
	})
}

func (h *handler) getCurrentHeight(c echo.Context) error {
	height, err := h.vaultSvc.GetCurrentHeight(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, heightResponse{height})
}

func (h *handler) createVault(c echo.Context) error {
	var req createVaultRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	params, err := parseCreateVaultRequest(req)
	if err != nil {
		return err
	}

	info, err := h.vaultSvc.CreateVault(c.Request().Context(), *params)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, vault(*info).toResponse())
}

func (h *handler) listVaults(c echo.Context) error {
	states, err := parseStates(c.QueryParams()["state"])
	if err != nil {
		return err
	}
	vaults, err := h.vaultSvc.ListVaults(c.Request().Context(), states...)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, vaultList(vaults).toResponse())
}

func (h *handler) getLastVaultCreated(c echo.Context) error {
	info, err := h.vaultSvc.GetLastVaultCreated(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, vault(*info).toResponse())
}

func (h *handler) getVault(c echo.Context) error {
	info, err := h.vaultSvc.GetVault(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, vault(*info).toResponse())
}

func (h *handler) depositCreator(c echo.Context) error {
	var req depositCreatorRequest
	// The body is optional, auto compound defaults to false.
	if c.Request().ContentLength != 0 {
		if err := bind(c, &req); err != nil {
			return err
		}
	}

	info, err := h.vaultSvc.DepositCreator(
		c.Request().Context(), c.Param("id"), caller(c), req.AutoCompound,
	)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, vault(*info).toResponse())
}

func (h *handler) depositInvestor(c echo.Context) error {
	info, err := h.vaultSvc.DepositInvestor(c.Request().Context(), c.Param("id"), caller(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, vault(*info).toResponse())
}

func (h *handler) withdrawNoMatch(c echo.Context) error {
	info, err := h.vaultSvc.WithdrawNoMatch(c.Request().Context(), c.Param("id"), caller(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, vault(*info).toResponse())
}

func (h *handler) settle(c echo.Context) error {
	info, err := h.vaultSvc.Settle(c.Request().Context(), c.Param("id"), caller(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, vault(*info).toResponse())
}

func (h *handler) getBalance(c echo.Context) error {
	bal, err := h.ledgerSvc.GetBalance(
		c.Request().Context(), c.Param("token"), c.Param("holder"),
	)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, balance(*bal).toResponse())
}

func (h *handler) approve(c echo.Context) error {
	var req approveRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	token := c.Param("token")
	if err := h.ledgerSvc.Approve(ctx, token, caller(c), req.Spender, amount); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handler) getMintAuthority(c echo.Context) error {
	authority, err := h.mintAuthority.GetMintAuthority(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, mintAuthority(*authority).toResponse())
}

func (h *handler) setMinterSource(c echo.Context) error {
	var req setMinterSourceRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.mintAuthority.SetMinterSource(
		c.Request().Context(), caller(c), req.Token, req.Minter,
	); err != nil {
		return err
	}
	return h.getMintAuthority(c)
}

func (h *handler) whitelistFactory(c echo.Context) error {
	var req whitelistFactoryRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.mintAuthority.WhitelistFactory(
		c.Request().Context(), caller(c), req.Factory, req.Approved,
	); err != nil {
		return err
	}
	return h.getMintAuthority(c)
}

func (h *handler) faucet(c echo.Context) error {
	var req faucetRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		return err
	}

	bal, err := h.ledgerSvc.Faucet(c.Request().Context(), c.Param("token"), req.Recipient, amount)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, balance(*bal).toResponse())
}
