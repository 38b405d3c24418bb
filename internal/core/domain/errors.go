package domain

import "errors"

var (
	ErrInvalidParameters     = errors.New("invalid parameters")
	ErrWrongState            = errors.New("wrong state")
	ErrNotCreator            = errors.New("caller is not the creator")
	ErrNotParticipant        = errors.New("caller is neither the investor nor the creator")
	ErrSameIdentityAsCreator = errors.New("investor identity equals the creator identity")
	ErrLockNotElapsed        = errors.New("lock period not elapsed")
	ErrNotWhitelisted        = errors.New("factory not whitelisted for minting")
	ErrNoVaultCreatedYet     = errors.New("no vault created yet")
	ErrNotAdmin              = errors.New("caller is not the admin")
)
