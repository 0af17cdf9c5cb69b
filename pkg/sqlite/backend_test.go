package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/tabula/pkg/types"
)

func TestOpen(t *testing.T) {
	cfg := types.DefaultConfig()
	cfg.DataDir = t.TempDir()

	store, err := Open(cfg, nil)
	require.NoError(t, err)
	names, err := store.ListSchemes(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)
	require.NoError(t, store.Detach())

	cfg.LogFormat = "xml"
	_, err = Open(cfg, nil)
	assert.ErrorIs(t, err, types.ErrLogFormatUnknown)
}
