package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codex-libs/repofacade/secrets"
)

func TestMemoryProvider_StoreResolve(t *testing.T) {
	p := New()
	ctx := context.Background()

	tests := []struct {
		name  string
		ref   secrets.SecretRef
		value []byte
	}{
		{
			name:  "latest",
			ref:   secrets.CredentialRef("github.com"),
			value: []byte(`{"username":"octo","password":"pat"}`),
		},
		{
			name:  "explicit version",
			ref:   secrets.SecretRef{Path: "git/gitlab.com", Version: "v2"},
			value: []byte("glpat-token"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, p.Store(ctx, tt.ref, tt.value))

			s, err := p.Resolve(ctx, tt.ref)
			require.NoError(t, err)
			assert.Equal(t, tt.value, s.Value)
			assert.False(t, s.CreatedAt.IsZero())

			latest, err := p.Resolve(ctx, secrets.SecretRef{Path: tt.ref.Path})
			require.NoError(t, err)
			assert.Equal(t, tt.value, latest.Value)
		})
	}
}

func TestMemoryProvider_ResolveReturnsCopy(t *testing.T) {
	p := New()
	ctx := context.Background()
	ref := secrets.SecretRef{Path: "git/example.com"}
	require.NoError(t, p.Store(ctx, ref, []byte("abc")))

	s, err := p.Resolve(ctx, ref)
	require.NoError(t, err)
	s.Clear()

	again, err := p.Resolve(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again.Value)
}

func TestMemoryProvider_NotFound(t *testing.T) {
	p := New()
	ctx := context.Background()

	_, err := p.Resolve(ctx, secrets.SecretRef{Path: "git/missing"})
	assert.ErrorIs(t, err, secrets.ErrSecretNotFound)

	ok, err := p.Exists(ctx, secrets.SecretRef{Path: "git/missing"})
	require.NoError(t, err)
	assert.False(t, ok)

	err = p.Delete(ctx, secrets.SecretRef{Path: "git/missing"})
	assert.ErrorIs(t, err, secrets.ErrSecretNotFound)
}

func TestMemoryProvider_Delete(t *testing.T) {
	p := New()
	ctx := context.Background()
	ref := secrets.SecretRef{Path: "git/example.com", Version: "v1"}
	require.NoError(t, p.Store(ctx, ref, []byte("one")))

	require.NoError(t, p.Delete(ctx, ref))
	ok, err := p.Exists(ctx, ref)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = p.Exists(ctx, secrets.SecretRef{Path: ref.Path})
	require.NoError(t, err)
	assert.True(t, ok, "latest survives deleting a pinned version")

	require.NoError(t, p.Delete(ctx, secrets.SecretRef{Path: ref.Path}))
	ok, err = p.Exists(ctx, secrets.SecretRef{Path: ref.Path})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryProvider_Close(t *testing.T) {
	p := New()
	ctx := context.Background()
	ref := secrets.SecretRef{Path: "git/example.com"}
	require.NoError(t, p.Store(ctx, ref, []byte("v")))

	require.NoError(t, p.Close())

	ok, err := p.Exists(ctx, ref)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryProvider_Cancelled(t *testing.T) {
	p := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Resolve(ctx, secrets.SecretRef{Path: "git/x"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, p.Store(ctx, secrets.SecretRef{Path: "git/x"}, []byte("v")), context.Canceled)
}

func TestMemoryProvider_RejectsEmptyPath(t *testing.T) {
	err := New().Store(context.Background(), secrets.SecretRef{}, []byte("v"))
	assert.ErrorIs(t, err, secrets.ErrInvalidRef)
}
