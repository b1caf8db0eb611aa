package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"entitlement-manager/core/storage/mocks"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMinio_Get(t *testing.T) {
	t.Run("Found", func(t *testing.T) {
		mockClient := new(mocks.Client)
		mockClient.On("GetObject", mock.Anything, "entitlements", "u1/remove_ads", mock.Anything).
			Return(io.NopCloser(bytes.NewReader([]byte("payload"))), nil)

		got, err := NewMinio(mockClient, "entitlements").Get(context.Background(), "u1/remove_ads")
		require.NoError(t, err)
		assert.Equal(t, "payload", string(got))
	})

	t.Run("NoSuchKey", func(t *testing.T) {
		mockClient := new(mocks.Client)
		mockClient.On("GetObject", mock.Anything, "entitlements", "u1/missing", mock.Anything).
			Return(nil, minio.ErrorResponse{Code: "NoSuchKey", Message: "The specified key does not exist."})

		_, err := NewMinio(mockClient, "entitlements").Get(context.Background(), "u1/missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("OtherError", func(t *testing.T) {
		mockClient := new(mocks.Client)
		mockClient.On("GetObject", mock.Anything, "entitlements", "u1/x", mock.Anything).
			Return(nil, errors.New("connection reset"))

		_, err := NewMinio(mockClient, "entitlements").Get(context.Background(), "u1/x")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotFound)
		assert.Contains(t, err.Error(), "connection reset")
	})
}

func TestMinio_Put(t *testing.T) {
	mockClient := new(mocks.Client)
	mockClient.On("PutObject", mock.Anything, "entitlements", "u1/remove_ads", mock.Anything, int64(7), mock.Anything).
		Return(minio.UploadInfo{Key: "u1/remove_ads"}, nil)

	err := NewMinio(mockClient, "entitlements").Put(context.Background(), "u1/remove_ads", []byte("payload"))
	assert.NoError(t, err)
	mockClient.AssertExpectations(t)

	failing := new(mocks.Client)
	failing.On("PutObject", mock.Anything, "entitlements", "k", mock.Anything, int64(1), mock.Anything).
		Return(minio.UploadInfo{}, errors.New("bucket is read-only"))

	err = NewMinio(failing, "entitlements").Put(context.Background(), "k", []byte("x"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "bucket is read-only")
}
