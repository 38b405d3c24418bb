package errors

import (
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"
	grpccodes "google.golang.org/grpc/codes"
)

// Code is the type representing a namespace error code.
type Code[MT any] struct {
	Code     uint16
	Name     string
	GrpcCode grpccodes.Code
}

// New creates a new error with the given code and the message
func (c Code[MT]) New(msg string, args ...any) TypedError[MT] {
	return &ErrorImpl[MT]{
		code:  c,
		cause: fmt.Errorf(msg, args...),
	}
}

// Wrap creates a new Error with the given code and the cause error
func (c Code[MT]) Wrap(cause error) TypedError[MT] {
	return &ErrorImpl[MT]{
		code:  c,
		cause: cause,
	}
}

func (c Code[MT]) String() string {
	return fmt.Sprintf("%s (%d)", c.Name, c.Code)
}

type Error interface {
	error
	Log() *log.Entry
	Code() uint16
	CodeName() string
	GrpcCode() grpccodes.Code
	Metadata() map[string]string
}

type TypedError[MT any] interface {
	Error
	WithMetadata(MT) TypedError[MT]
}

// ErrorImpl is the default concrete implementation of TypedError.
type ErrorImpl[MT any] struct {
	code     Code[MT]
	cause    error
	metadata MT
}

func (e *ErrorImpl[MT]) Log() *log.Entry {
	return log.WithField("name", e.code.Name).
		WithField("code", e.code.Code).
		WithField("metadata", e.metadata)
}

func (e *ErrorImpl[MT]) Metadata() map[string]string {
	// convert any metadata to map[string]string
	metadata := make(map[string]string)
	buf, err := json.Marshal(e.metadata)
	if err == nil {
		var genericMap map[string]any
		if err := json.Unmarshal(buf, &genericMap); err == nil {
			for k, v := range genericMap {
				vStr := ""
				if v != nil {
					vStr = fmt.Sprintf("%v", v)
				}
				metadata[k] = vStr
			}
		}
	}
	return metadata
}

func (e *ErrorImpl[MT]) GrpcCode() grpccodes.Code {
	return e.code.GrpcCode
}

func (e *ErrorImpl[MT]) Code() uint16 {
	return e.code.Code
}

func (e *ErrorImpl[MT]) CodeName() string {
	return e.code.Name
}

// Error() implements the error interface.
func (e *ErrorImpl[MT]) Error() string {
	return fmt.Sprintf("%s: %s", e.code.String(), e.cause.Error())
}

// Unwrap gives access to the cause so that errors.Is/As keep working across the
// typed error boundary.
func (e *ErrorImpl[MT]) Unwrap() error {
	return e.cause
}

func (e *ErrorImpl[MT]) WithMetadata(metadata MT) TypedError[MT] {
	e.metadata = metadata
	return e
}

type InvalidParametersMetadata struct {
	Field  string `json:"field"`
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

type VaultMetadata struct {
	VaultId string `json:"vault_id"`
}

type WrongStateMetadata struct {
	VaultId       string `json:"vault_id"`
	CurrentState  string `json:"current_state"`
	ExpectedState string `json:"expected_state"`
}

type IdentityMismatchMetadata struct {
	VaultId  string `json:"vault_id"`
	Caller   string `json:"caller"`
	Expected string `json:"expected"`
}

type TransferMetadata struct {
	VaultId  string `json:"vault_id"`
	Token    string `json:"token"`
	From     string `json:"from"`
	To       string `json:"to"`
	Amount   string `json:"amount"`
	Received string `json:"received"`
}

type StrategyMetadata struct {
	VaultId  string `json:"vault_id"`
	Amount   string `json:"amount"`
	Shares   string `json:"shares"`
	Received string `json:"received"`
}

type LockNotElapsedMetadata struct {
	VaultId         string `json:"vault_id"`
	LockStartHeight int64  `json:"lock_start_height"`
	MaturityHeight  int64  `json:"maturity_height"`
	CurrentHeight   int64  `json:"current_height"`
}

type MintMetadata struct {
	Factory   string `json:"factory"`
	Recipient string `json:"recipient"`
	Token     string `json:"token"`
	Amount    string `json:"amount"`
}

type AdminMetadata struct {
	Caller string `json:"caller"`
}

var INTERNAL_ERROR = Code[map[string]any]{0, "INTERNAL_ERROR", grpccodes.Internal}

var INVALID_PARAMETERS = Code[InvalidParametersMetadata]{
	1,
	"INVALID_PARAMETERS",
	grpccodes.InvalidArgument,
}
var WRONG_STATE = Code[WrongStateMetadata]{2, "WRONG_STATE", grpccodes.FailedPrecondition}

var NOT_CREATOR = Code[IdentityMismatchMetadata]{
	3,
	"NOT_CREATOR",
	grpccodes.PermissionDenied,
}

var NOT_INVESTOR = Code[IdentityMismatchMetadata]{
	4,
	"NOT_INVESTOR",
	grpccodes.PermissionDenied,
}

var SAME_IDENTITY_AS_CREATOR = Code[IdentityMismatchMetadata]{
	5,
	"SAME_IDENTITY_AS_CREATOR",
	grpccodes.InvalidArgument,
}
var TRANSFER_FAILED = Code[TransferMetadata]{6, "TRANSFER_FAILED", grpccodes.Aborted}

var STRATEGY_DEPOSIT_FAILED = Code[StrategyMetadata]{
	7,
	"STRATEGY_DEPOSIT_FAILED",
	grpccodes.Aborted,
}

var STRATEGY_WITHDRAW_FAILED = Code[StrategyMetadata]{
	8,
	"STRATEGY_WITHDRAW_FAILED",
	grpccodes.Aborted,
}

var LOCK_NOT_ELAPSED = Code[LockNotElapsedMetadata]{
	9,
	"LOCK_NOT_ELAPSED",
	grpccodes.FailedPrecondition,
}
var NOT_WHITELISTED = Code[MintMetadata]{10, "NOT_WHITELISTED", grpccodes.PermissionDenied}
var NO_VAULT_CREATED_YET = Code[any]{11, "NO_VAULT_CREATED_YET", grpccodes.NotFound}
var VAULT_NOT_FOUND = Code[VaultMetadata]{12, "VAULT_NOT_FOUND", grpccodes.NotFound}
var NOT_ADMIN = Code[AdminMetadata]{13, "NOT_ADMIN", grpccodes.PermissionDenied}
var MINT_FAILED = Code[MintMetadata]{14, "MINT_FAILED", grpccodes.Aborted}
