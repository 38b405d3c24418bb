package main

import (
	"fmt"

	"github.com/Flowerbox-Finance/Flowerbox-Finance/internal/config"
	"github.com/urfave/cli/v2"
)

const (
	urlFlagName                = "url"
	adminUrlFlagName           = "admin-url"
	identityFlagName           = "identity"
	vaultIdFlagName            = "id"
	amountFlagName             = "amount"
	tokenFlagName              = "token"
	holderFlagName             = "holder"
	spenderFlagName            = "spender"
	recipientFlagName          = "recipient"
	factoryFlagName            = "factory"
	minterFlagName             = "minter"
	revokeFlagName             = "revoke"
	autoCompoundFlagName       = "auto-compound"
	stateFlagName              = "state"
	creatorDepositFlagName     = "creator-deposit"
	investorDepositFlagName    = "investor-deposit"
	lockDurationFlagName       = "lock-duration"
	underlyingAssetFlagName    = "underlying"
	strategyShareAssetFlagName = "share-asset"
	rewardsPoolFlagName        = "rewards-pool"
	yieldSplitFlagName         = "yield-split"
	rewardRateFlagName         = "reward-rate"
)

var (
	urlFlag = &cli.StringFlag{
		Name:  urlFlagName,
		Usage: "the url where to reach the flowerbox public server",
		Value: fmt.Sprintf("http://127.0.0.1:%d", config.DefaultPort),
	}
	adminUrlFlag = &cli.StringFlag{
		Name:  adminUrlFlagName,
		Usage: "the url where to reach the flowerbox admin server",
		Value: fmt.Sprintf("http://127.0.0.1:%d", config.DefaultAdminPort),
	}
	identityFlag = &cli.StringFlag{
		Name:  identityFlagName,
		Usage: "the ledger identity of the caller, defaults to FLOWERBOXD_IDENTITY",
	}
	vaultIdFlag = &cli.StringFlag{
		Name:     vaultIdFlagName,
		Usage:    "id or address of the vault",
		Required: true,
	}
	amountFlag = &cli.StringFlag{
		Name:     amountFlagName,
		Usage:    "amount in base units",
		Required: true,
	}
	tokenFlag = &cli.StringFlag{
		Name:     tokenFlagName,
		Usage:    "the ledger token",
		Required: true,
	}
	holderFlag = &cli.StringFlag{
		Name:  holderFlagName,
		Usage: "the holder of the balance, defaults to the caller identity",
	}
	spenderFlag = &cli.StringFlag{
		Name:     spenderFlagName,
		Usage:    "the identity allowed to spend the amount, usually a vault address",
		Required: true,
	}
	recipientFlag = &cli.StringFlag{
		Name:     recipientFlagName,
		Usage:    "the identity receiving the minted amount",
		Required: true,
	}
	factoryFlag = &cli.StringFlag{
		Name:     factoryFlagName,
		Usage:    "the factory address to whitelist",
		Required: true,
	}
	minterFlag = &cli.StringFlag{
		Name:     minterFlagName,
		Usage:    "the identity designated as minter source of the token",
		Required: true,
	}
	revokeFlag = &cli.BoolFlag{
		Name:  revokeFlagName,
		Usage: "remove the factory from the whitelist",
	}
	autoCompoundFlag = &cli.BoolFlag{
		Name:  autoCompoundFlagName,
		Usage: "restake the creator payout in the strategy at settlement",
	}
	stateFlag = &cli.StringSliceFlag{
		Name:  stateFlagName,
		Usage: "filter vaults by state (Created, WaitingForMatch, WithdrawnNoMatch, Matched, Settled)",
	}
	creatorDepositFlag = &cli.StringFlag{
		Name:     creatorDepositFlagName,
		Usage:    "amount deposited by the creator",
		Required: true,
	}
	investorDepositFlag = &cli.StringFlag{
		Name:     investorDepositFlagName,
		Usage:    "amount deposited by the investor",
		Required: true,
	}
	lockDurationFlag = &cli.Int64Flag{
		Name:     lockDurationFlagName,
		Usage:    "number of blocks the deposits stay locked once matched",
		Required: true,
	}
	underlyingAssetFlag = &cli.StringFlag{
		Name:  underlyingAssetFlagName,
		Usage: "the underlying asset deposited by both parties",
		Value: "yCRV",
	}
	strategyShareAssetFlag = &cli.StringFlag{
		Name:  strategyShareAssetFlagName,
		Usage: "the share asset of the yield strategy",
		Value: "yvCRV",
	}
	rewardsPoolFlag = &cli.StringFlag{
		Name:     rewardsPoolFlagName,
		Usage:    "the rewards pool identity",
		Required: true,
	}
	yieldSplitFlag = &cli.StringFlag{
		Name:  yieldSplitFlagName,
		Usage: "fraction of the surplus yield assigned to the creator, server default if unset",
	}
	rewardRateFlag = &cli.StringFlag{
		Name:  rewardRateFlagName,
		Usage: "incentive tokens minted per unit of deposit per locked block, server default if unset",
	}
)
