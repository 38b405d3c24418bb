package domain

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// MintAuthority gates the issuance of incentive tokens. Only whitelisted
// factories may request a mint, and only for tokens whose minter source is the
// authority itself.
type MintAuthority struct {
	Address       string
	Admin         string
	Whitelist     map[string]bool
	MinterSources map[string]string
	UpdatedAt     int64
}

func NewMintAuthority(address, admin string) (*MintAuthority, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("%w: invalid mint authority address %s", ErrInvalidParameters, address)
	}
	if !common.IsHexAddress(admin) {
		return nil, fmt.Errorf("%w: invalid admin address %s", ErrInvalidParameters, admin)
	}
	return &MintAuthority{
		Address:       common.HexToAddress(address).Hex(),
		Admin:         common.HexToAddress(admin).Hex(),
		Whitelist:     make(map[string]bool),
		MinterSources: make(map[string]string),
		UpdatedAt:     time.Now().Unix(),
	}, nil
}

func (m *MintAuthority) SetMinterSource(caller, token, minter string) error {
	if err := m.requireAdmin(caller); err != nil {
		return err
	}
	if token == "" {
		return fmt.Errorf("%w: missing token", ErrInvalidParameters)
	}
	if !common.IsHexAddress(minter) {
		return fmt.Errorf("%w: invalid minter %s", ErrInvalidParameters, minter)
	}
	if m.MinterSources == nil {
		m.MinterSources = make(map[string]string)
	}
	m.MinterSources[token] = common.HexToAddress(minter).Hex()
	m.UpdatedAt = time.Now().Unix()
	return nil
}

func (m *MintAuthority) WhitelistFactory(caller, factory string, approved bool) error {
	if err := m.requireAdmin(caller); err != nil {
		return err
	}
	if !common.IsHexAddress(factory) {
		return fmt.Errorf("%w: invalid factory %s", ErrInvalidParameters, factory)
	}
	if m.Whitelist == nil {
		m.Whitelist = make(map[string]bool)
	}
	factory = common.HexToAddress(factory).Hex()
	if approved {
		m.Whitelist[factory] = true
	} else {
		delete(m.Whitelist, factory)
	}
	m.UpdatedAt = time.Now().Unix()
	return nil
}

func (m *MintAuthority) IsWhitelisted(factory string) bool {
	if !common.IsHexAddress(factory) {
		return false
	}
	return m.Whitelist[common.HexToAddress(factory).Hex()]
}

// CanMint returns ErrNotWhitelisted unless the factory is approved and the
// authority is the designated minter of the token.
func (m *MintAuthority) CanMint(factory, token string) error {
	if !m.IsWhitelisted(factory) {
		return fmt.Errorf("%w: %s", ErrNotWhitelisted, factory)
	}
	if m.MinterSources[token] != m.Address {
		return fmt.Errorf(
			"%w: mint authority is not the minter source of %s", ErrNotWhitelisted, token,
		)
	}
	return nil
}

func (m *MintAuthority) requireAdmin(caller string) error {
	// Identities are compared as addresses, the casing of the hex is not
	// significant.
	if !common.IsHexAddress(caller) ||
		common.HexToAddress(caller) != common.HexToAddress(m.Admin) {
		return fmt.Errorf("%w: %s", ErrNotAdmin, caller)
	}
	return nil
}
