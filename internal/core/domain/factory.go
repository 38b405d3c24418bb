package domain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Factory instantiates vaults and keeps track of them in creation order.
// The address of every vault is derived from the factory address and nonce so
// that it is known before any deposit reaches it.
type Factory struct {
	Address          string
	Nonce            uint64
	LastCreatedVault string
	Vaults           []string
	UpdatedAt        int64
}

func NewFactory(address string) (*Factory, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("%w: invalid factory address %s", ErrInvalidParameters, address)
	}
	return &Factory{
		Address: common.HexToAddress(address).Hex(),
		Vaults:  make([]string, 0),
	}, nil
}

// NewVault validates the given params and returns a fresh vault in Created
// state. The factory registry is updated only if the vault is valid.
func (f *Factory) NewVault(id string, params VaultParams) (*Vault, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: missing vault id", ErrInvalidParameters)
	}
	if !common.IsHexAddress(params.RewardsPool) {
		return nil, fmt.Errorf(
			"%w: rewards pool %s is not a valid ledger identity", ErrInvalidParameters,
			params.RewardsPool,
		)
	}
	params.RewardsPool = common.HexToAddress(params.RewardsPool).Hex()

	address := f.NextVaultAddress()
	vault, err := newVault(id, address, f.Address, f.Nonce, params)
	if err != nil {
		return nil, err
	}

	f.Nonce++
	f.LastCreatedVault = vault.Id
	f.Vaults = append(f.Vaults, vault.Id)
	f.UpdatedAt = vault.CreatedAt
	return vault, nil
}

// NextVaultAddress returns the custody address the next vault will get.
func (f *Factory) NextVaultAddress() string {
	return crypto.CreateAddress(common.HexToAddress(f.Address), f.Nonce).Hex()
}

func (f *Factory) LastVault() (string, error) {
	if f.LastCreatedVault == "" {
		return "", ErrNoVaultCreatedYet
	}
	return f.LastCreatedVault, nil
}

func (f *Factory) Owns(vault *Vault) bool {
	return vault != nil && vault.Factory == f.Address
}
