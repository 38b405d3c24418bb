package domain_test

import (
	"testing"

	"github.com/Flowerbox-Finance/Flowerbox-Finance/internal/core/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func TestFactory(t *testing.T) {
	_, err := domain.NewFactory("factory")
	require.ErrorIs(t, err, domain.ErrInvalidParameters)

	factory, err := domain.NewFactory(factoryAddress)
	require.NoError(t, err)
	require.Equal(t, common.HexToAddress(factoryAddress).Hex(), factory.Address)

	_, err = factory.LastVault()
	require.ErrorIs(t, err, domain.ErrNoVaultCreatedYet)

	expected := crypto.CreateAddress(common.HexToAddress(factoryAddress), 0).Hex()
	require.Equal(t, expected, factory.NextVaultAddress())

	first, err := factory.NewVault("first", testParams)
	require.NoError(t, err)
	require.Equal(t, expected, first.Address)
	require.Equal(t, factory.Address, first.Factory)
	require.Equal(t, uint64(0), first.Sequence)
	require.True(t, factory.Owns(first))

	second, err := factory.NewVault("second", testParams)
	require.NoError(t, err)
	require.NotEqual(t, first.Address, second.Address)
	require.Equal(t, uint64(1), second.Sequence)

	last, err := factory.LastVault()
	require.NoError(t, err)
	require.Equal(t, "second", last)
	require.Equal(t, []string{"first", "second"}, factory.Vaults)
	require.Equal(t, uint64(2), factory.Nonce)

	// Invalid vaults leave the registry untouched.
	invalid := testParams
	invalid.RewardsPool = "pool"
	_, err = factory.NewVault("third", invalid)
	require.ErrorIs(t, err, domain.ErrInvalidParameters)

	invalid = testParams
	invalid.LockDuration = 0
	_, err = factory.NewVault("third", invalid)
	require.ErrorIs(t, err, domain.ErrInvalidParameters)

	_, err = factory.NewVault("", testParams)
	require.ErrorIs(t, err, domain.ErrInvalidParameters)

	require.Equal(t, uint64(2), factory.Nonce)
	require.Len(t, factory.Vaults, 2)

	other, err := domain.NewFactory(rewardsPool)
	require.NoError(t, err)
	require.False(t, other.Owns(first))
	require.False(t, other.Owns(nil))
}
