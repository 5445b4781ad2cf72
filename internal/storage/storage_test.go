package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectKeyNamespacesPerOwner(t *testing.T) {
	assert.Equal(t, "user-u1/report.pdf", ObjectKey("u1", "report.pdf"))
	assert.NotEqual(t, ObjectKey("u1", "report.pdf"), ObjectKey("u2", "report.pdf"))

	assert.True(t, owned("u1", "user-u1/report.pdf"))
	assert.False(t, owned("u2", "user-u1/report.pdf"))

	// A prefix of another user id must not leak into its namespace
	assert.False(t, owned("u1", "user-u11/report.pdf"))
}

func TestMemStoreRejectsForeignKeys(t *testing.T) {
	m := NewMem()
	ctx := context.Background()

	key := ObjectKey("u1", "a.txt")
	require.NoError(t, m.Put(ctx, key, strings.NewReader("x"), 1, "text/plain", false))

	_, err := m.SignedURL(ctx, "u2", key, time.Hour)
	assert.ErrorIs(t, err, ErrForeignKey)

	assert.ErrorIs(t, m.SetVisibility(ctx, "u2", key, true), ErrForeignKey)
	assert.ErrorIs(t, m.Delete(ctx, "u2", key), ErrForeignKey)

	// Nothing changed
	assert.True(t, m.Has(key))
	assert.False(t, m.Public(key))
}

func TestMemStoreVisibility(t *testing.T) {
	m := NewMem()
	ctx := context.Background()

	key := ObjectKey("u1", "a.txt")
	require.NoError(t, m.Put(ctx, key, strings.NewReader("x"), 1, "text/plain", false))

	_, ok := m.PublicURL(ctx, key)
	assert.False(t, ok)

	require.NoError(t, m.SetVisibility(ctx, "u1", key, true))

	url, ok := m.PublicURL(ctx, key)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(url, "mem://public/"))

	require.NoError(t, m.SetVisibility(ctx, "u1", key, false))

	_, ok = m.PublicURL(ctx, key)
	assert.False(t, ok)
}

func TestMemStorePutAppliesVisibility(t *testing.T) {
	m := NewMem()
	ctx := context.Background()

	key := ObjectKey("u1", "a.txt")
	require.NoError(t, m.Put(ctx, key, strings.NewReader("x"), 1, "text/plain", true))

	_, ok := m.PublicURL(ctx, key)
	assert.True(t, ok)
}

func TestMemStoreDelete(t *testing.T) {
	m := NewMem()
	ctx := context.Background()

	key := ObjectKey("u1", "a.txt")
	require.NoError(t, m.Put(ctx, key, strings.NewReader("x"), 1, "text/plain", false))
	require.NoError(t, m.Delete(ctx, "u1", key))

	assert.False(t, m.Has(key))
	assert.Zero(t, m.Len())

	_, err := m.SignedURL(ctx, "u1", key, time.Hour)
	assert.Error(t, err)
}

func TestDirectURLEscapesSegments(t *testing.T) {
	s := &S3Store{baseURL: "https://bucket.s3.eu-central-1.amazonaws.com"}

	got := s.directURL("user-u1/my report #2.pdf")
	assert.Equal(t, "https://bucket.s3.eu-central-1.amazonaws.com/user-u1/my%20report%20%232.pdf", got)
}
