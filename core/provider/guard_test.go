package provider

import (
	"context"
	"testing"

	"entitlement-manager/core/reconcile"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockFinalizer struct {
	mock.Mock
}

func (m *mockFinalizer) Acknowledge(ctx context.Context, req reconcile.FinalizeRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockFinalizer) Consume(ctx context.Context, req reconcile.FinalizeRequest) error {
	return m.Called(ctx, req).Error(0)
}

func TestGuard_OpensOnTransientFailures(t *testing.T) {
	next := new(mockFinalizer)
	next.On("Acknowledge", mock.Anything, mock.Anything).
		Return(reconcile.NewProviderError(reconcile.CodeServiceUnavailable, "down"))

	g := NewGuard(next, Config{BreakerFailures: 2, BreakerTimeoutSeconds: 60}, nil)
	req := reconcile.FinalizeRequest{Token: "tok"}

	for i := 0; i < 2; i++ {
		err := g.Acknowledge(context.Background(), req)
		assert.True(t, reconcile.IsTransient(err))
	}
	assert.Equal(t, "open", g.State())

	err := g.Acknowledge(context.Background(), req)
	var code reconcile.ResponseCode
	if pe, ok := err.(*reconcile.ProviderError); ok {
		code = pe.Code
	}
	assert.Equal(t, reconcile.CodeServiceUnavailable, code)
	assert.True(t, reconcile.IsTransient(err))
	next.AssertNumberOfCalls(t, "Acknowledge", 2)
}

func TestGuard_PermanentErrorsDoNotTrip(t *testing.T) {
	next := new(mockFinalizer)
	next.On("Consume", mock.Anything, mock.Anything).
		Return(reconcile.NewProviderError(reconcile.CodeItemNotOwned, "gone"))

	g := NewGuard(next, Config{BreakerFailures: 1}, nil)
	for i := 0; i < 3; i++ {
		err := g.Consume(context.Background(), reconcile.FinalizeRequest{Token: "tok"})
		assert.False(t, reconcile.IsTransient(err))
	}
	assert.Equal(t, "closed", g.State())
	next.AssertNumberOfCalls(t, "Consume", 3)
}

func TestGuard_RateLimitHonorsContext(t *testing.T) {
	next := new(mockFinalizer)
	next.On("Acknowledge", mock.Anything, mock.Anything).Return(nil)

	g := NewGuard(next, Config{RatePerSecond: 0.001, Burst: 1}, nil)
	assert.NoError(t, g.Acknowledge(context.Background(), reconcile.FinalizeRequest{Token: "a"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := g.Acknowledge(ctx, reconcile.FinalizeRequest{Token: "b"})
	assert.True(t, reconcile.IsTransient(err))
	next.AssertNumberOfCalls(t, "Acknowledge", 1)
}
