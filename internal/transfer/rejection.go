package transfer

import (
	"errors"
	"fmt"
)

// Kind is the stable classification of a transfer rejection.
type Kind string

const (
	KindInvalidInput       Kind = "invalid_input"
	KindUnauthorized       Kind = "unauthorized"
	KindNotFound           Kind = "not_found"
	KindInsufficientFunds  Kind = "insufficient_funds"
	KindAlreadySettled     Kind = "already_settled"
	KindConflict           Kind = "conflict"
	KindStorageUnavailable Kind = "storage_unavailable"
)

// Rejection is a typed business refusal. Expected conditions (bad input,
// blocked accounts, insufficient funds) are always surfaced this way rather
// than as opaque errors; only infrastructure faults carry the
// KindStorageUnavailable kind, which callers may retry with backoff.
type Rejection struct {
	Kind    Kind
	Message string
}

func (r Rejection) Error() string {
	return r.Message
}

// Retryable reports whether the caller can usefully retry the operation.
func (r Rejection) Retryable() bool {
	return r.Kind == KindConflict || r.Kind == KindStorageUnavailable
}

func reject(kind Kind, format string, args ...any) error {
	return Rejection{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the rejection kind, if err is a Rejection.
func KindOf(err error) (Kind, bool) {
	var r Rejection
	if errors.As(err, &r) {
		return r.Kind, true
	}
	return "", false
}

// IsKind reports whether err is a Rejection of the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
