package driver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/fittrack/internal/config"
	"example.com/fittrack/internal/persistence/memory"
)

func TestOpenMemory(t *testing.T) {
	store, closeFn, err := Open(context.Background(), config.Config{StoreDriver: config.DriverMemory})
	require.NoError(t, err)
	defer closeFn()
	require.IsType(t, &memory.Store{}, store)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, _, err := Open(context.Background(), config.Config{StoreDriver: "sqlite"})
	require.Error(t, err)
}
