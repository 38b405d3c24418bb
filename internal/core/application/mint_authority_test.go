package application

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"cosmossdk.io/math"
	"github.com/Flowerbox-Finance/Flowerbox-Finance/internal/core/domain"
	"github.com/Flowerbox-Finance/Flowerbox-Finance/internal/core/ports"
	"github.com/Flowerbox-Finance/Flowerbox-Finance/internal/infrastructure/db"
	inmemoryledger "github.com/Flowerbox-Finance/Flowerbox-Finance/internal/infrastructure/ledger/inmemory"
	"github.com/Flowerbox-Finance/Flowerbox-Finance/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestMintAuthorityService(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, withoutWhitelist())
	svc := env.mintAuthority

	authority, err := svc.GetMintAuthority(ctx)
	require.NoError(t, err)
	require.Equal(t, authorityAddress, authority.Address)
	require.Equal(t, admin, authority.Admin)
	require.Equal(t, authorityAddress, authority.MinterSources[incentiveToken])
	require.Empty(t, authority.Whitelist)

	minter, err := env.ledger.Minter(ctx, incentiveToken)
	require.NoError(t, err)
	require.Equal(t, authorityAddress, minter)

	t.Run("admin only", func(t *testing.T) {
		err := svc.WhitelistFactory(ctx, outsider, factoryAddress, true)
		requireErrorCode(t, err, errors.NOT_ADMIN)
		err = svc.SetMinterSource(ctx, outsider, incentiveToken, outsider)
		requireErrorCode(t, err, errors.NOT_ADMIN)

		err = svc.WhitelistFactory(ctx, admin, "factory", true)
		requireErrorCode(t, err, errors.INVALID_PARAMETERS)

		authority, err := svc.GetMintAuthority(ctx)
		require.NoError(t, err)
		require.Empty(t, authority.Whitelist)
	})

	t.Run("mint reward", func(t *testing.T) {
		err := svc.MintReward(ctx, factoryAddress, investor, math.NewInt(10))
		requireErrorCode(t, err, errors.NOT_WHITELISTED)

		err = svc.WhitelistFactory(ctx, admin, factoryAddress, true)
		require.NoError(t, err)

		err = svc.MintReward(ctx, factoryAddress, investor, math.ZeroInt())
		requireErrorCode(t, err, errors.INVALID_PARAMETERS)

		err = svc.MintReward(ctx, factoryAddress, investor, math.NewInt(10))
		require.NoError(t, err)
		require.Equal(t, "10", env.balance(t, incentiveToken, investor))

		supply, err := env.ledger.TotalSupply(ctx, incentiveToken)
		require.NoError(t, err)
		require.Equal(t, "10", supply.String())

		err = svc.WhitelistFactory(ctx, admin, factoryAddress, false)
		require.NoError(t, err)
		err = svc.MintReward(ctx, factoryAddress, investor, math.NewInt(10))
		requireErrorCode(t, err, errors.NOT_WHITELISTED)
		require.Equal(t, "10", env.balance(t, incentiveToken, investor))
	})

	t.Run("minter source moved away", func(t *testing.T) {
		err := svc.WhitelistFactory(ctx, admin, factoryAddress, true)
		require.NoError(t, err)

		err = svc.SetMinterSource(ctx, admin, incentiveToken, tokenMinter)
		require.NoError(t, err)
		minter, err := env.ledger.Minter(ctx, incentiveToken)
		require.NoError(t, err)
		require.Equal(t, tokenMinter, minter)

		err = svc.MintReward(ctx, factoryAddress, investor, math.NewInt(10))
		requireErrorCode(t, err, errors.NOT_WHITELISTED)

		err = svc.SetMinterSource(ctx, admin, incentiveToken, authorityAddress)
		require.NoError(t, err)
		err = svc.MintReward(ctx, factoryAddress, investor, math.NewInt(5))
		require.NoError(t, err)
		require.Equal(t, "15", env.balance(t, incentiveToken, investor))
	})
}

func TestMintAuthorityServiceIdentityCasing(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, withoutWhitelist())
	svc := env.mintAuthority
	lowerAdmin := strings.ToLower(admin)
	lowerFactory := strings.ToLower(factoryAddress)

	err := svc.WhitelistFactory(ctx, lowerAdmin, lowerFactory, true)
	require.NoError(t, err)

	authority, err := svc.GetMintAuthority(ctx)
	require.NoError(t, err)
	require.True(t, authority.IsWhitelisted(factoryAddress))
	require.True(t, authority.IsWhitelisted(lowerFactory))

	err = svc.MintReward(ctx, lowerFactory, strings.ToLower(investor), math.NewInt(3))
	require.NoError(t, err)
	require.Equal(t, "3", env.balance(t, incentiveToken, investor))

	err = svc.SetMinterSource(ctx, strings.ToUpper(admin[2:]), incentiveToken, tokenMinter)
	require.NoError(t, err)
	minter, err := env.ledger.Minter(ctx, incentiveToken)
	require.NoError(t, err)
	require.Equal(t, tokenMinter, minter)

	err = svc.MintReward(ctx, "factory", investor, math.NewInt(3))
	requireErrorCode(t, err, errors.INVALID_PARAMETERS)
}

func TestSetMinterSourcePersistFailure(t *testing.T) {
	ctx := context.Background()
	repoManager, err := db.NewService(db.ServiceConfig{
		EventStoreType:   "badger",
		DataStoreType:    "badger",
		EventStoreConfig: []interface{}{"", nil},
		DataStoreConfig:  []interface{}{"", nil},
	})
	require.NoError(t, err)
	t.Cleanup(repoManager.Close)
	failing := &failingRepoManager{RepoManager: repoManager}
	ledger := inmemoryledger.NewLedger()

	svc, err := NewMintAuthorityService(
		failing, ledger, authorityAddress, admin, incentiveToken, nil,
	)
	require.NoError(t, err)
	require.NoError(t, svc.Start())

	failing.failUpsert = true
	err = svc.SetMinterSource(ctx, admin, incentiveToken, tokenMinter)
	requireErrorCode(t, err, errors.INTERNAL_ERROR)

	// Both the ledger and the authority still point at the authority.
	minter, err := ledger.Minter(ctx, incentiveToken)
	require.NoError(t, err)
	require.Equal(t, authorityAddress, minter)
	authority, err := svc.GetMintAuthority(ctx)
	require.NoError(t, err)
	require.Equal(t, authorityAddress, authority.MinterSources[incentiveToken])

	failing.failUpsert = false
	err = svc.SetMinterSource(ctx, admin, incentiveToken, tokenMinter)
	require.NoError(t, err)
	minter, err = ledger.Minter(ctx, incentiveToken)
	require.NoError(t, err)
	require.Equal(t, tokenMinter, minter)
}

type failingRepoManager struct {
	ports.RepoManager
	failUpsert bool
}

func (m *failingRepoManager) MintAuthorities() domain.MintAuthorityRepository {
	return &failingMintAuthorityRepo{m.RepoManager.MintAuthorities(), m}
}

type failingMintAuthorityRepo struct {
	domain.MintAuthorityRepository
	manager *failingRepoManager
}

func (r *failingMintAuthorityRepo) Upsert(ctx context.Context, authority domain.MintAuthority) error {
	if r.manager.failUpsert {
		return fmt.Errorf("connection refused")
	}
	return r.MintAuthorityRepository.Upsert(ctx, authority)
}

func TestMintAuthorityServiceRestart(t *testing.T) {
	ctx := context.Background()
	repoManager, err := db.NewService(db.ServiceConfig{
		EventStoreType:   "badger",
		DataStoreType:    "sqlite",
		EventStoreConfig: []interface{}{t.TempDir(), nil},
		DataStoreConfig:  []interface{}{t.TempDir()},
	})
	require.NoError(t, err)
	t.Cleanup(repoManager.Close)
	ledger := inmemoryledger.NewLedger()

	svc, err := NewMintAuthorityService(
		repoManager, ledger, authorityAddress, admin, incentiveToken, nil,
	)
	require.NoError(t, err)
	require.NoError(t, svc.Start())
	require.NoError(t, svc.WhitelistFactory(ctx, admin, factoryAddress, true))

	// A new instance restores the whitelist from the db.
	restarted, err := NewMintAuthorityService(
		repoManager, ledger, authorityAddress, admin, incentiveToken, nil,
	)
	require.NoError(t, err)
	require.NoError(t, restarted.Start())

	authority, err := restarted.GetMintAuthority(ctx)
	require.NoError(t, err)
	require.True(t, authority.IsWhitelisted(factoryAddress))

	err = restarted.MintReward(ctx, factoryAddress, creator, math.NewInt(7))
	require.NoError(t, err)
	balance, err := ledger.BalanceOf(ctx, incentiveToken, creator)
	require.NoError(t, err)
	require.Equal(t, "7", balance.String())
}

func TestNewMintAuthorityServiceInvalid(t *testing.T) {
	_, err := NewMintAuthorityService(nil, nil, authorityAddress, admin, "", nil)
	require.Error(t, err)
	_, err = NewMintAuthorityService(nil, nil, "authority", admin, incentiveToken, nil)
	require.Error(t, err)
	_, err = NewMintAuthorityService(nil, nil, authorityAddress, "admin", incentiveToken, nil)
	require.Error(t, err)
}

func TestLedgerService(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	svc := env.ledgerSvc

	balance, err := svc.Faucet(ctx, underlying, creator, math.NewInt(42))
	require.NoError(t, err)
	require.Equal(t, underlying, balance.Token)
	require.Equal(t, creator, balance.Holder)
	require.Equal(t, "42", balance.Amount.String())

	balance, err = svc.GetBalance(ctx, underlying, creator)
	require.NoError(t, err)
	require.Equal(t, "42", balance.Amount.String())
	// The yield reserve was funded at bootstrap.
	require.Equal(t, "100042", balance.TotalSupply.String())

	err = svc.Approve(ctx, underlying, creator, investor, math.NewInt(10))
	require.NoError(t, err)
	allowance, err := env.ledger.Allowance(ctx, underlying, creator, investor)
	require.NoError(t, err)
	require.Equal(t, "10", allowance.String())

	fixtures := []struct {
		name string
		run  func() error
	}{
		{"faucet protected token", func() error {
			_, err := svc.Faucet(ctx, incentiveToken, creator, math.NewInt(1))
			return err
		}},
		{"faucet share token", func() error {
			_, err := svc.Faucet(ctx, shareAsset, creator, math.NewInt(1))
			return err
		}},
		{"faucet unknown token", func() error {
			_, err := svc.Faucet(ctx, "DOGE", creator, math.NewInt(1))
			return err
		}},
		{"faucet zero amount", func() error {
			_, err := svc.Faucet(ctx, underlying, creator, math.ZeroInt())
			return err
		}},
		{"balance of invalid holder", func() error {
			_, err := svc.GetBalance(ctx, underlying, "creator")
			return err
		}},
		{"approve negative amount", func() error {
			return svc.Approve(ctx, underlying, creator, investor, math.NewInt(-1))
		}},
		{"approve invalid spender", func() error {
			return svc.Approve(ctx, underlying, creator, "vault", math.NewInt(1))
		}},
	}
	for _, f := range fixtures {
		t.Run(f.name, func(t *testing.T) {
			requireErrorCode(t, f.run(), errors.INVALID_PARAMETERS)
		})
	}

	supply, err := env.ledger.TotalSupply(ctx, incentiveToken)
	require.NoError(t, err)
	require.True(t, supply.IsZero())
}
