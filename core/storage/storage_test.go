package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/numbot/core/database"
)

func openSQLite(t *testing.T, path string) *SQL {
	t.Helper()
	target := database.SQLiteTarget(path)
	require.NoError(t, database.RunMigrations(target))
	db, err := database.Connect(target)
	require.NoError(t, err)
	return NewSQL(db)
}

func backends(t *testing.T) map[string]Backend {
	t.Helper()
	mr := miniredis.RunT(t)
	rb, err := OpenRedis("redis://"+mr.Addr()+"/0", "test:")
	require.NoError(t, err)

	all := map[string]Backend{
		"memory": NewMemory(),
		"sqlite": openSQLite(t, filepath.Join(t.TempDir(), "db.sqlite")),
		"redis":  rb,
	}
	t.Cleanup(func() {
		for _, b := range all {
			_ = b.Close()
		}
	})
	return all
}

func TestBackendContract(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, b.Ping(ctx))

			_, err := b.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, b.Put(ctx, "a", []byte(`{"kind":"start"}`)))
			require.NoError(t, b.Put(ctx, "b", []byte("other")))
			require.NoError(t, b.Put(ctx, "a", []byte("overwritten")))

			got, err := b.Get(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, []byte("overwritten"), got)

			got, err = b.Get(ctx, "b")
			require.NoError(t, err)
			assert.Equal(t, []byte("other"), got)

			require.NoError(t, b.Delete(ctx, "a"))
			require.NoError(t, b.Delete(ctx, "a"))
			_, err = b.Get(ctx, "a")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestBackendConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			const writers = 16
			var wg sync.WaitGroup
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					assert.NoError(t, b.Put(ctx, "shared", []byte(fmt.Sprintf("v%02d", i))))
					assert.NoError(t, b.Put(ctx, fmt.Sprintf("own-%d", i), []byte("x")))
				}(i)
			}
			wg.Wait()

			got, err := b.Get(ctx, "shared")
			require.NoError(t, err)
			assert.Regexp(t, `^v\d{2}$`, string(got))
			for i := 0; i < writers; i++ {
				_, err := b.Get(ctx, fmt.Sprintf("own-%d", i))
				assert.NoError(t, err)
			}
		})
	}
}

func TestMemoryCopiesValues(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	in := []byte("abc")
	require.NoError(t, m.Put(ctx, "k", in))
	in[0] = 'z'

	out, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(out))
	out[0] = 'q'

	again, _ := m.Get(ctx, "k")
	assert.Equal(t, "abc", string(again))
	assert.Equal(t, 1, m.Len())

	require.NoError(t, m.Close())
	assert.Error(t, m.Ping(ctx))
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "db.sqlite")

	first := openSQLite(t, path)
	require.NoError(t, first.Put(ctx, "42", []byte("persisted")))
	require.NoError(t, first.Close())

	second := openSQLite(t, path)
	defer second.Close()
	got, err := second.Get(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "persisted", string(got))
}

func TestRedisUsesPrefix(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rb, err := OpenRedis("redis://"+mr.Addr(), "numbot:dialogue:")
	require.NoError(t, err)
	defer rb.Close()

	require.NoError(t, rb.Put(ctx, "7", []byte("v")))
	stored, err := mr.Get("numbot:dialogue:7")
	require.NoError(t, err)
	assert.Equal(t, "v", stored)
	assert.Zero(t, mr.TTL("numbot:dialogue:7"))

	mr.SetError("LOADING")
	_, err = rb.Get(ctx, "7")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
