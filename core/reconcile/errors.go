package reconcile

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrorKind classifies reconciliation failures.
type ErrorKind string

const (
	// KindUnknownProduct means the product is absent from the catalog.
	KindUnknownProduct ErrorKind = "unknown_product"
	// KindFinalizationFailed means transient provider errors exhausted the retries.
	KindFinalizationFailed ErrorKind = "finalization_failed"
	// KindFinalizationRejected means the provider permanently refused finalization.
	KindFinalizationRejected ErrorKind = "finalization_rejected"
	// KindStorageError means the store could not be read or written.
	KindStorageError ErrorKind = "storage_error"
)

var (
	ErrUnknownProduct       = errors.New("unknown product")
	ErrFinalizationFailed   = errors.New("finalization failed")
	ErrFinalizationRejected = errors.New("finalization rejected")
	ErrStorage              = errors.New("storage error")

	// ErrNotPurchasable is returned when a purchase flow is requested for a product the user already holds.
	ErrNotPurchasable = errors.New("product is not purchasable")
	// ErrNoProvider is returned when an operation needs a provider collaborator that was not configured.
	ErrNoProvider = errors.New("provider not configured")
	// ErrNotSubscription is returned when a subscription-only operation names another kind.
	ErrNotSubscription = errors.New("product is not a subscription")
)

// Error is a classified reconciliation failure.
type Error struct {
	Kind      ErrorKind
	UserID    string
	ProductID string
	Token     string
	Effect    EffectType
	Err       error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: product=%s", e.Kind, e.ProductID)
	if e.Token != "" {
		msg += " token=" + e.Token
	}
	if e.Effect != "" {
		msg += " effect=" + string(e.Effect)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnknownProduct:
		return e.Kind == KindUnknownProduct
	case ErrFinalizationFailed:
		return e.Kind == KindFinalizationFailed
	case ErrFinalizationRejected:
		return e.Kind == KindFinalizationRejected
	case ErrStorage:
		return e.Kind == KindStorageError
	}
	return false
}

// MarshalJSON renders the error for pass reports.
func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind      ErrorKind  `json:"kind"`
		ProductID string     `json:"product_id"`
		Token     string     `json:"token,omitempty"`
		Effect    EffectType `json:"effect,omitempty"`
		Message   string     `json:"message"`
	}{e.Kind, e.ProductID, e.Token, e.Effect, e.Error()})
}

func unknownProduct(userID, productID, token string) *Error {
	return &Error{Kind: KindUnknownProduct, UserID: userID, ProductID: productID, Token: token, Err: ErrUnknownProduct}
}

func storageError(userID, productID string, err error) *Error {
	return &Error{Kind: KindStorageError, UserID: userID, ProductID: productID, Effect: EffectPersist, Err: err}
}
