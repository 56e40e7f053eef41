package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNameMorphs_GetUnknownIsAbsent(t *testing.T) {
	store := newTestStorage(t).NameMorphs()

	v, found, err := store.Get(context.Background(), "name")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, v)
}

func TestNameMorphs_GetAfterSet(t *testing.T) {
	store := newTestStorage(t).NameMorphs()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "name", "known-name"))

	v, found, err := store.Get(ctx, "name")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "known-name", v)
}

func TestNameMorphs_SetTwiceIsDuplicate(t *testing.T) {
	tests := []struct {
		name   string
		second string
	}{
		{"same value", "known-new-name"},
		{"different value", "other-name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStorage(t).NameMorphs()
			ctx := context.Background()

			require.NoError(t, store.Set(ctx, "new-name", "known-new-name"))
			err := store.Set(ctx, "new-name", tt.second)
			assert.ErrorIs(t, err, ErrDuplicateKey)

			v, _, err := store.Get(ctx, "new-name")
			require.NoError(t, err)
			assert.Equal(t, "known-new-name", v)
		})
	}
}

func TestNameMorphs_KeysAreExact(t *testing.T) {
	store := newTestStorage(t).NameMorphs()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "Иванов Иван", "Иванову Ивану"))

	for _, key := range []string{"иванов иван", "Иванов  Иван", " Иванов Иван"} {
		_, found, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, found, key)
	}
	require.NoError(t, store.Set(ctx, "иванов иван", "иванову ивану"))
}

func TestNameMorphs_EmptyNameRejected(t *testing.T) {
	store := newTestStorage(t).NameMorphs()
	assert.Error(t, store.Set(context.Background(), "", "x"))
}
