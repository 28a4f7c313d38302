package marker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportKey(t *testing.T) {
	assert.Equal(t, "report:COMMENT:42:bob@example.com", ReportKey("COMMENT", 42, "bob@example.com"))
}

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	ok, err := s.Has(ctx, "report:COMMENT:1:a@example.com")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Mark(ctx, "report:COMMENT:1:a@example.com"))
	require.NoError(t, s.Mark(ctx, "report:COMMENT:1:a@example.com"))

	ok, err = s.Has(ctx, "report:COMMENT:1:a@example.com")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Has(ctx, "report:COMMENT:2:a@example.com")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestBadger_InMemory(t *testing.T) {
	b, err := OpenBadger("")
	require.NoError(t, err)
	defer b.Close()

	exerciseStore(t, b)
}

func TestBadger_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	b, err := OpenBadger(dir)
	require.NoError(t, err)
	require.NoError(t, b.Mark(ctx, "report:COMMENT:9:c@example.com"))
	require.NoError(t, b.Close())

	b, err = OpenBadger(dir)
	require.NoError(t, err)
	defer b.Close()

	ok, err := b.Has(ctx, "report:COMMENT:9:c@example.com")
	require.NoError(t, err)
	assert.True(t, ok)
}
