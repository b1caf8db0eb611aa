package reconcile

import (
	"context"
	"errors"
	"testing"

	"entitlement-manager/core/blobstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenBacking struct{}

func (brokenBacking) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("io timeout")
}

func (brokenBacking) Put(context.Context, string, []byte) error {
	return errors.New("io timeout")
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	backing := blobstore.NewMemory()
	store := NewStore(backing, "entitlements")

	rec, err := store.Get(ctx, "u1", "remove_ads")
	require.NoError(t, err)
	assert.Nil(t, rec)

	want := &EntitlementRecord{UserID: "u1", ProductID: "remove_ads", Kind: KindOneTime, PurchaseToken: "tok1", GrantedAt: t0, Active: true}
	require.NoError(t, store.Put(ctx, want))
	assert.Equal(t, []string{"entitlements/u1/remove_ads"}, backing.Keys())

	got, err := store.Get(ctx, "u1", "remove_ads")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestStore_Update(t *testing.T) {
	ctx := context.Background()
	store := NewStore(blobstore.NewMemory(), "")

	rec, err := store.Update(ctx, "u1", "t1", func(*EntitlementRecord) bool { return true })
	require.NoError(t, err)
	assert.Nil(t, rec, "missing records are not created")

	require.NoError(t, store.Put(ctx, &EntitlementRecord{UserID: "u1", ProductID: "t1", PurchaseToken: "tok", Active: true}))
	rec, err = store.Update(ctx, "u1", "t1", func(r *EntitlementRecord) bool {
		r.Active = false
		r.Consumed = true
		return true
	})
	require.NoError(t, err)
	assert.True(t, rec.Consumed)

	stored, err := store.Get(ctx, "u1", "t1")
	require.NoError(t, err)
	assert.False(t, stored.Active)
	assert.True(t, stored.Consumed)
}

func TestStore_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := NewStore(brokenBacking{}, "").Load(ctx, "u1", []string{"remove_ads"})
	assert.ErrorIs(t, err, ErrStorage)

	backing := blobstore.NewMemory()
	require.NoError(t, backing.Put(ctx, "u1/remove_ads", []byte("{not json")))
	_, err = NewStore(backing, "").Get(ctx, "u1", "remove_ads")
	assert.ErrorContains(t, err, "failed to decode record")
}
