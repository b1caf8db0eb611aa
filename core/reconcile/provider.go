package reconcile

import (
	"context"
	"errors"
	"fmt"
)

// ResponseCode is a billing provider response code.
type ResponseCode string

const (
	CodeOK                  ResponseCode = "ok"
	CodeUserCanceled        ResponseCode = "user_canceled"
	CodeServiceUnavailable  ResponseCode = "service_unavailable"
	CodeServiceDisconnected ResponseCode = "service_disconnected"
	CodeServiceTimeout      ResponseCode = "service_timeout"
	CodeNetworkError        ResponseCode = "network_error"
	CodeError               ResponseCode = "error"
	CodeItemAlreadyOwned    ResponseCode = "item_already_owned"
	CodeItemNotOwned        ResponseCode = "item_not_owned"
	CodeItemUnavailable     ResponseCode = "item_unavailable"
	CodeDeveloperError      ResponseCode = "developer_error"
	CodeAlreadyFinalized    ResponseCode = "already_finalized"
)

// ProviderError is a non-OK provider response.
type ProviderError struct {
	Code    ResponseCode
	Message string
}

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("provider: %s", e.Code)
	}
	return fmt.Sprintf("provider: %s: %s", e.Code, e.Message)
}

// Transient reports whether retrying the call may succeed.
func (e *ProviderError) Transient() bool {
	switch e.Code {
	case CodeServiceUnavailable, CodeServiceDisconnected, CodeServiceTimeout, CodeNetworkError, CodeError:
		return true
	default:
		return false
	}
}

// NewProviderError builds a ProviderError.
func NewProviderError(code ResponseCode, format string, args ...any) *ProviderError {
	return &ProviderError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// IsAlreadyFinalized reports whether err says the token was already acknowledged or consumed.
func IsAlreadyFinalized(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Code == CodeAlreadyFinalized
}

// IsTransient reports whether err should be retried. Errors that are not
// ProviderErrors are treated as transport failures and retried.
func IsTransient(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Transient()
	}
	return err != nil
}

// FinalizeRequest addresses one purchase for finalization.
type FinalizeRequest struct {
	UserID    string
	ProductID string
	Kind      ProductKind
	Token     string
}

// PurchaseSource lists the purchases the provider currently reports for a user.
type PurchaseSource interface {
	QueryPurchases(ctx context.Context, userID string, productType ProductType) ([]PurchaseReport, error)
}

// Finalizer tells the provider a purchase has been delivered.
type Finalizer interface {
	Acknowledge(ctx context.Context, req FinalizeRequest) error
	Consume(ctx context.Context, req FinalizeRequest) error
}

// PurchaseLauncher starts a purchase flow. The resulting purchase comes back
// through QueryPurchases or a purchase update.
type PurchaseLauncher interface {
	LaunchPurchaseFlow(ctx context.Context, userID, productID string) error
}

// SnapshotPublisher delivers snapshots to whoever renders entitlements.
type SnapshotPublisher interface {
	Publish(ctx context.Context, snapshot *Snapshot) error
}
