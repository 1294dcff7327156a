package wallet

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/rpc"
)

// Provider error codes defined by EIP-1193 and EIP-3326.
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnrecognizedChain = 4902
)

// Kind classifies session failures.
type Kind int

const (
	KindUnknown Kind = iota
	KindProviderUnavailable
	KindUserRejected
	KindNetworkSwitchFailed
	KindRegistrationFailed
	KindBalanceQueryFailed
	KindTimedOut
	KindConnectInProgress
)

func (k Kind) String() string {
	switch k {
	case KindProviderUnavailable:
		return "provider_unavailable"
	case KindUserRejected:
		return "user_rejected"
	case KindNetworkSwitchFailed:
		return "network_switch_failed"
	case KindRegistrationFailed:
		return "registration_failed"
	case KindBalanceQueryFailed:
		return "balance_query_failed"
	case KindTimedOut:
		return "timed_out"
	case KindConnectInProgress:
		return "connect_in_progress"
	default:
		return "unknown"
	}
}

// Error is returned by every session operation that fails.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Kind.String()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrProviderUnavailable = &Error{Kind: KindProviderUnavailable}
	ErrUserRejected        = &Error{Kind: KindUserRejected}
	ErrNetworkSwitchFailed = &Error{Kind: KindNetworkSwitchFailed}
	ErrRegistrationFailed  = &Error{Kind: KindRegistrationFailed}
	ErrBalanceQueryFailed  = &Error{Kind: KindBalanceQueryFailed}
	ErrTimedOut            = &Error{Kind: KindTimedOut}
	ErrConnectInProgress   = &Error{Kind: KindConnectInProgress}
)

// ProviderError is a coded failure reported by a wallet provider. It satisfies
// go-ethereum's rpc.Error, so codes survive a JSON-RPC round trip unchanged.
type ProviderError struct {
	Code    int
	Message string
}

func (e *ProviderError) Error() string  { return e.Message }
func (e *ProviderError) ErrorCode() int { return e.Code }

// ErrorCode extracts a provider error code from err, or 0 if it carries none.
func ErrorCode(err error) int {
	var coded rpc.Error
	if errors.As(err, &coded) {
		return coded.ErrorCode()
	}
	return 0
}

// classify maps a raw provider failure to a kind, falling back to def.
func classify(err error, def Kind) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimedOut
	}
	if ErrorCode(err) == CodeUserRejected {
		return KindUserRejected
	}
	return def
}
