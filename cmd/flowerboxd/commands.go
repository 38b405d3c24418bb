package main

import (
	"fmt"
	"net/url"

	"github.com/urfave/cli/v2"
)

var (
	infoCmd = &cli.Command{
		Name:   "info",
		Usage:  "Get info about the flowerbox service",
		Action: infoAction,
		Flags:  []cli.Flag{urlFlag},
	}

	vaultCmd = &cli.Command{
		Name:  "vault",
		Usage: "Create and interact with vaults",
		Subcommands: cli.Commands{
			vaultCreateCmd,
			vaultGetCmd,
			vaultLastCmd,
			vaultListCmd,
			vaultDepositCreatorCmd,
			vaultDepositInvestorCmd,
			vaultWithdrawNoMatchCmd,
			vaultSettleCmd,
		},
	}
	vaultCreateCmd = &cli.Command{
		Name:   "create",
		Usage:  "Create a new vault through the factory",
		Action: vaultCreateAction,
		Flags: []cli.Flag{
			urlFlag, creatorDepositFlag, investorDepositFlag, lockDurationFlag,
			underlyingAssetFlag, strategyShareAssetFlag, rewardsPoolFlag, yieldSplitFlag,
			rewardRateFlag,
		},
	}
	vaultGetCmd = &cli.Command{
		Name:   "get",
		Usage:  "Get a vault by id or address",
		Action: vaultGetAction,
		Flags:  []cli.Flag{urlFlag, vaultIdFlag},
	}
	vaultLastCmd = &cli.Command{
		Name:   "last",
		Usage:  "Get the last vault created by the factory",
		Action: vaultLastAction,
		Flags:  []cli.Flag{urlFlag},
	}
	vaultListCmd = &cli.Command{
		Name:   "list",
		Usage:  "List the vaults of the factory",
		Action: vaultListAction,
		Flags:  []cli.Flag{urlFlag, stateFlag},
	}
	vaultDepositCreatorCmd = &cli.Command{
		Name:   "deposit-creator",
		Usage:  "Deposit the creator amount, the vault must be approved as spender",
		Action: vaultDepositCreatorAction,
		Flags:  []cli.Flag{urlFlag, identityFlag, vaultIdFlag, autoCompoundFlag},
	}
	vaultDepositInvestorCmd = &cli.Command{
		Name:   "deposit-investor",
		Usage:  "Deposit the investor amount and lock the vault",
		Action: vaultTransitionAction("deposit-investor"),
		Flags:  []cli.Flag{urlFlag, identityFlag, vaultIdFlag},
	}
	vaultWithdrawNoMatchCmd = &cli.Command{
		Name:   "withdraw-no-match",
		Usage:  "Withdraw the creator deposit of an unmatched vault",
		Action: vaultTransitionAction("withdraw-no-match"),
		Flags:  []cli.Flag{urlFlag, identityFlag, vaultIdFlag},
	}
	vaultSettleCmd = &cli.Command{
		Name:   "settle",
		Usage:  "Settle a matched vault once the lock elapsed",
		Action: vaultTransitionAction("settle"),
		Flags:  []cli.Flag{urlFlag, identityFlag, vaultIdFlag},
	}

	ledgerCmd = &cli.Command{
		Name:  "ledger",
		Usage: "Query and approve ledger balances",
		Subcommands: cli.Commands{
			{
				Name:   "height",
				Usage:  "Get the current ledger height",
				Action: heightAction,
				Flags:  []cli.Flag{urlFlag},
			},
			{
				Name:   "balance",
				Usage:  "Get the balance of a holder",
				Action: balanceAction,
				Flags:  []cli.Flag{urlFlag, identityFlag, tokenFlag, holderFlag},
			},
			{
				Name:   "approve",
				Usage:  "Approve a spender to transfer funds of the caller",
				Action: approveAction,
				Flags:  []cli.Flag{urlFlag, identityFlag, tokenFlag, spenderFlag, amountFlag},
			},
		},
	}

	adminCmd = &cli.Command{
		Name:  "admin",
		Usage: "Manage the mint authority and the ledger faucet",
		Subcommands: cli.Commands{
			{
				Name:   "mint-authority",
				Usage:  "Get the mint authority whitelist and minter sources",
				Action: mintAuthorityAction,
				Flags:  []cli.Flag{adminUrlFlag, identityFlag},
			},
			{
				Name:   "whitelist",
				Usage:  "Approve or revoke a factory",
				Action: whitelistAction,
				Flags:  []cli.Flag{adminUrlFlag, identityFlag, factoryFlag, revokeFlag},
			},
			{
				Name:   "minter-source",
				Usage:  "Designate the minter source of a token",
				Action: minterSourceAction,
				Flags:  []cli.Flag{adminUrlFlag, identityFlag, tokenFlag, minterFlag},
			},
			{
				Name:   "faucet",
				Usage:  "Mint test funds of a ledger token",
				Action: faucetAction,
				Flags:  []cli.Flag{adminUrlFlag, identityFlag, tokenFlag, recipientFlag, amountFlag},
			},
		},
	}
)

func infoAction(ctx *cli.Context) error {
	return getAndPrint(fmt.Sprintf("%s/v1/info", baseUrl(ctx)), "")
}

func heightAction(ctx *cli.Context) error {
	return getAndPrint(fmt.Sprintf("%s/v1/ledger/height", baseUrl(ctx)), "")
}

func vaultCreateAction(ctx *cli.Context) error {
	body := map[string]any{
		"creator_deposit":      ctx.String(creatorDepositFlagName),
		"investor_deposit":     ctx.String(investorDepositFlagName),
		"lock_duration":        ctx.Int64(lockDurationFlagName),
		"underlying_asset":     ctx.String(underlyingAssetFlagName),
		"strategy_share_asset": ctx.String(strategyShareAssetFlagName),
		"rewards_pool":         ctx.String(rewardsPoolFlagName),
		"yield_split":          ctx.String(yieldSplitFlagName),
		"reward_rate":          ctx.String(rewardRateFlagName),
	}
	return postAndPrint(fmt.Sprintf("%s/v1/vaults", baseUrl(ctx)), "", body)
}

func vaultGetAction(ctx *cli.Context) error {
	id := url.PathEscape(ctx.String(vaultIdFlagName))
	return getAndPrint(fmt.Sprintf("%s/v1/vaults/%s", baseUrl(ctx), id), "")
}

func vaultLastAction(ctx *cli.Context) error {
	return getAndPrint(fmt.Sprintf("%s/v1/vaults/last", baseUrl(ctx)), "")
}

func vaultListAction(ctx *cli.Context) error {
	query := url.Values{}
	for _, state := range ctx.StringSlice(stateFlagName) {
		query.Add("state", state)
	}
	endpoint := fmt.Sprintf("%s/v1/vaults", baseUrl(ctx))
	if len(query) > 0 {
		endpoint = fmt.Sprintf("%s?%s", endpoint, query.Encode())
	}
	return getAndPrint(endpoint, "")
}

func vaultDepositCreatorAction(ctx *cli.Context) error {
	id := url.PathEscape(ctx.String(vaultIdFlagName))
	body := map[string]any{"auto_compound": ctx.Bool(autoCompoundFlagName)}
	return postAndPrint(
		fmt.Sprintf("%s/v1/vaults/%s/deposit-creator", baseUrl(ctx), id), identity(ctx), body,
	)
}

func vaultTransitionAction(route string) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		id := url.PathEscape(ctx.String(vaultIdFlagName))
		return postAndPrint(
			fmt.Sprintf("%s/v1/vaults/%s/%s", baseUrl(ctx), id, route), identity(ctx), nil,
		)
	}
}

func balanceAction(ctx *cli.Context) error {
	holder := ctx.String(holderFlagName)
	if holder == "" {
		holder = identity(ctx)
	}
	if holder == "" {
		return fmt.Errorf("missing holder")
	}
	return getAndPrint(fmt.Sprintf(
		"%s/v1/ledger/%s/balances/%s",
		baseUrl(ctx), url.PathEscape(ctx.String(tokenFlagName)), url.PathEscape(holder),
	), "")
}

func approveAction(ctx *cli.Context) error {
	body := map[string]any{
		"spender": ctx.String(spenderFlagName),
		"amount":  ctx.String(amountFlagName),
	}
	return postAndPrint(fmt.Sprintf(
		"%s/v1/ledger/%s/approve", baseUrl(ctx), url.PathEscape(ctx.String(tokenFlagName)),
	), identity(ctx), body)
}

func mintAuthorityAction(ctx *cli.Context) error {
	return getAndPrint(
		fmt.Sprintf("%s/v1/admin/mint-authority", adminBaseUrl(ctx)), identity(ctx),
	)
}

func whitelistAction(ctx *cli.Context) error {
	body := map[string]any{
		"factory":  ctx.String(factoryFlagName),
		"approved": !ctx.Bool(revokeFlagName),
	}
	return postAndPrint(
		fmt.Sprintf("%s/v1/admin/mint-authority/whitelist", adminBaseUrl(ctx)),
		identity(ctx), body,
	)
}

func minterSourceAction(ctx *cli.Context) error {
	body := map[string]any{
		"token":  ctx.String(tokenFlagName),
		"minter": ctx.String(minterFlagName),
	}
	return postAndPrint(
		fmt.Sprintf("%s/v1/admin/mint-authority/minter-source", adminBaseUrl(ctx)),
		identity(ctx), body,
	)
}

func faucetAction(ctx *cli.Context) error {
	body := map[string]any{
		"recipient": ctx.String(recipientFlagName),
		"amount":    ctx.String(amountFlagName),
	}
	return postAndPrint(fmt.Sprintf(
		"%s/v1/admin/ledger/%s/faucet",
		adminBaseUrl(ctx), url.PathEscape(ctx.String(tokenFlagName)),
	), identity(ctx), body)
}

func getAndPrint(endpoint, identity string) error {
	buf, err := get(endpoint, identity)
	if err != nil {
		return err
	}
	return printResponse(buf)
}

func postAndPrint(endpoint, identity string, body any) error {
	buf, err := post(endpoint, identity, body)
	if err != nil {
		return err
	}
	return printResponse(buf)
}
