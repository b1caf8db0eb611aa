package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"entitlement-manager/core/reconcile"

	"google.golang.org/api/androidpublisher/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Purchase states reported by the Developer API.
const (
	acknowledgementStateAcknowledged = 1
	consumptionStateConsumed         = 1
)

// PlayStore finalizes purchases through the Google Play Developer API.
// Receipt validation is left to the client; only acknowledge and consume are used.
type PlayStore struct {
	svc         *androidpublisher.Service
	packageName string
	timeout     time.Duration
}

// NewPlayStore creates a Developer API client. Extra options are appended to
// the ones derived from cfg.
func NewPlayStore(ctx context.Context, cfg Config, opts ...option.ClientOption) (*PlayStore, error) {
	if cfg.PackageName == "" {
		return nil, errors.New("playstore: package name is required")
	}

	var base []option.ClientOption
	if cfg.CredentialsFile != "" {
		base = append(base, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		base = append(base, option.WithEndpoint(cfg.Endpoint))
	}

	svc, err := androidpublisher.NewService(ctx, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create androidpublisher service: %w", err)
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PlayStore{svc: svc, packageName: cfg.PackageName, timeout: timeout}, nil
}

// Acknowledge acknowledges a one-time product or subscription purchase.
func (p *PlayStore) Acknowledge(ctx context.Context, req reconcile.FinalizeRequest) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var err error
	if req.Kind == reconcile.KindSubscription {
		err = p.svc.Purchases.Subscriptions.
			Acknowledge(p.packageName, req.ProductID, req.Token, &androidpublisher.SubscriptionPurchasesAcknowledgeRequest{}).
			Context(ctx).Do()
	} else {
		err = p.svc.Purchases.Products.
			Acknowledge(p.packageName, req.ProductID, req.Token, &androidpublisher.ProductPurchasesAcknowledgeRequest{}).
			Context(ctx).Do()
	}
	if err == nil {
		return nil
	}
	if p.conflict(err) && p.alreadyAcknowledged(ctx, req) {
		return &reconcile.ProviderError{Code: reconcile.CodeAlreadyFinalized, Message: "already acknowledged"}
	}
	return classify(err)
}

// Consume consumes a consumable purchase.
func (p *PlayStore) Consume(ctx context.Context, req reconcile.FinalizeRequest) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.svc.Purchases.Products.Consume(p.packageName, req.ProductID, req.Token).Context(ctx).Do()
	if err == nil {
		return nil
	}
	if p.conflict(err) && p.alreadyConsumed(ctx, req) {
		return &reconcile.ProviderError{Code: reconcile.CodeAlreadyFinalized, Message: "already consumed"}
	}
	return classify(err)
}

// conflict reports whether err may mean the purchase is already finalized.
func (p *PlayStore) conflict(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && (gerr.Code == http.StatusBadRequest || gerr.Code == http.StatusConflict)
}

func (p *PlayStore) alreadyAcknowledged(ctx context.Context, req reconcile.FinalizeRequest) bool {
	if req.Kind == reconcile.KindSubscription {
		sub, err := p.svc.Purchases.Subscriptions.Get(p.packageName, req.ProductID, req.Token).Context(ctx).Do()
		return err == nil && sub.AcknowledgementState == acknowledgementStateAcknowledged
	}
	prod, err := p.svc.Purchases.Products.Get(p.packageName, req.ProductID, req.Token).Context(ctx).Do()
	return err == nil && prod.AcknowledgementState == acknowledgementStateAcknowledged
}

func (p *PlayStore) alreadyConsumed(ctx context.Context, req reconcile.FinalizeRequest) bool {
	prod, err := p.svc.Purchases.Products.Get(p.packageName, req.ProductID, req.Token).Context(ctx).Do()
	return err == nil && prod.ConsumptionState == consumptionStateConsumed
}

// classify maps Developer API failures onto billing response codes.
// Authorization failures are retried: a credentials problem must never revoke a grant.
func classify(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return reconcile.NewProviderError(reconcile.CodeNetworkError, "%v", err)
	}

	switch {
	case gerr.Code == http.StatusTooManyRequests || gerr.Code >= http.StatusInternalServerError:
		return reconcile.NewProviderError(reconcile.CodeServiceUnavailable, "%d %s", gerr.Code, gerr.Message)
	case gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden:
		return reconcile.NewProviderError(reconcile.CodeError, "%d %s", gerr.Code, gerr.Message)
	case gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone:
		return reconcile.NewProviderError(reconcile.CodeItemNotOwned, "%d %s", gerr.Code, gerr.Message)
	default:
		return reconcile.NewProviderError(reconcile.CodeDeveloperError, "%d %s", gerr.Code, gerr.Message)
	}
}
