package records

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollbook/internal/store"
)

type item struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func TestLoadMissingIsEmpty(t *testing.T) {
	s := New(store.NewMemory(), zerolog.Nop())
	got := Load[item](context.Background(), s, Students)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSaveThenLoadKeepsOrder(t *testing.T) {
	ctx := context.Background()
	s := New(store.NewMemory(), zerolog.Nop())

	in := []item{{ID: "b", Name: "Bea"}, {ID: "a", Name: "Ann"}}
	require.NoError(t, Save(ctx, s, Students, in))
	assert.Equal(t, in, Load[item](ctx, s, Students))

	require.NoError(t, Save(ctx, s, Students, []item{{ID: "c"}}))
	assert.Equal(t, []item{{ID: "c"}}, Load[item](ctx, s, Students))
}

func TestMalformedValueIsEmpty(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	s := New(kv, zerolog.Nop())

	for _, raw := range []string{"not json", `{"id":"1"}`, "null"} {
		require.NoError(t, kv.Set(ctx, Classes, []byte(raw)))
		got := Load[item](ctx, s, Classes)
		assert.Empty(t, got, raw)
		assert.NotNil(t, got, raw)
	}
}

func TestBackendErrorIsEmpty(t *testing.T) {
	kv := store.NewMemory()
	s := New(kv, zerolog.Nop())
	require.NoError(t, kv.Close())

	assert.Empty(t, Load[item](context.Background(), s, Students))
	assert.Error(t, Save(context.Background(), s, Students, []item{{ID: "1"}}))
}

func TestLoadForUpdateReturnsBackendError(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	s := New(kv, zerolog.Nop())

	require.NoError(t, kv.Set(ctx, Classes, []byte("not json")))
	got, err := LoadForUpdate[item](ctx, s, Classes)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = LoadForUpdate[item](ctx, s, Students)
	require.NoError(t, err)
	assert.NotNil(t, got)

	require.NoError(t, kv.Close())
	_, err = LoadForUpdate[item](ctx, s, Students)
	assert.ErrorIs(t, err, store.ErrClosed)
}

func TestSaveNilWritesEmptyArray(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	s := New(kv, zerolog.Nop())

	require.NoError(t, Save[item](ctx, s, Students, nil))
	raw, ok, err := kv.Get(ctx, Students)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "[]", string(raw))
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "attendance", label("attendance_2024-03-01"))
	assert.Equal(t, Students, label(Students))
}
