package domain_test

import (
	"strings"
	"testing"

	"github.com/Flowerbox-Finance/Flowerbox-Finance/internal/core/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestMintAuthority(t *testing.T) {
	authorityAddress := common.HexToAddress("0xab").Hex()
	admin := common.HexToAddress("0xad").Hex()
	factory := common.HexToAddress(factoryAddress).Hex()

	_, err := domain.NewMintAuthority("authority", admin)
	require.ErrorIs(t, err, domain.ErrInvalidParameters)
	_, err = domain.NewMintAuthority(authorityAddress, "")
	require.ErrorIs(t, err, domain.ErrInvalidParameters)

	authority, err := domain.NewMintAuthority(authorityAddress, admin)
	require.NoError(t, err)

	err = authority.CanMint(factory, "PETALS")
	require.ErrorIs(t, err, domain.ErrNotWhitelisted)

	err = authority.WhitelistFactory(creator, factory, true)
	require.ErrorIs(t, err, domain.ErrNotAdmin)
	err = authority.SetMinterSource("", "PETALS", authorityAddress)
	require.ErrorIs(t, err, domain.ErrNotAdmin)

	err = authority.WhitelistFactory(admin, "factory", true)
	require.ErrorIs(t, err, domain.ErrInvalidParameters)
	err = authority.SetMinterSource(admin, "", authorityAddress)
	require.ErrorIs(t, err, domain.ErrInvalidParameters)
	err = authority.SetMinterSource(admin, "PETALS", "minter")
	require.ErrorIs(t, err, domain.ErrInvalidParameters)

	// Addresses are normalized before being stored.
	err = authority.WhitelistFactory(admin, "0x00000000000000000000000000000000000000fa", true)
	require.NoError(t, err)
	require.True(t, authority.IsWhitelisted(factory))

	// Whitelisted but not yet the minter source of the token.
	err = authority.CanMint(factory, "PETALS")
	require.ErrorIs(t, err, domain.ErrNotWhitelisted)

	err = authority.SetMinterSource(admin, "PETALS", authorityAddress)
	require.NoError(t, err)
	require.NoError(t, authority.CanMint(factory, "PETALS"))
	require.ErrorIs(t, authority.CanMint(factory, "OTHER"), domain.ErrNotWhitelisted)

	err = authority.WhitelistFactory(admin, factory, false)
	require.NoError(t, err)
	require.False(t, authority.IsWhitelisted(factory))
	require.ErrorIs(t, authority.CanMint(factory, "PETALS"), domain.ErrNotWhitelisted)
}

func TestMintAuthorityIdentityCasing(t *testing.T) {
	admin := common.HexToAddress("0xad").Hex()
	factory := common.HexToAddress(factoryAddress).Hex()
	authority, err := domain.NewMintAuthority(common.HexToAddress("0xab").Hex(), admin)
	require.NoError(t, err)

	err = authority.WhitelistFactory(strings.ToLower(admin), factory, true)
	require.NoError(t, err)
	require.True(t, authority.IsWhitelisted(strings.ToLower(factory)))
	require.True(t, authority.IsWhitelisted(factory))
	require.False(t, authority.IsWhitelisted("factory"))

	err = authority.SetMinterSource(strings.ToLower(admin), "PETALS", authority.Address)
	require.NoError(t, err)
	require.NoError(t, authority.CanMint(strings.ToLower(factory), "PETALS"))

	err = authority.WhitelistFactory("admin", factory, false)
	require.ErrorIs(t, err, domain.ErrNotAdmin)
}
