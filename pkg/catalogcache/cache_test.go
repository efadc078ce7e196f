package catalogcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ramsey-B/fern/pkg/models"
)

func testLogger() ectologger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

func TestCache_LoadsOncePerTTL(t *testing.T) {
	loads := 0
	loader := func(ctx context.Context, projectID string) ([]models.CatalogItem, error) {
		loads++
		return []models.CatalogItem{{ID: "u1", ProjectID: projectID}}, nil
	}

	c := New(time.Minute, loader, testLogger())

	items, err := c.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Len(t, items, 1)

	_, err = c.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, loads)

	// different project is a separate key
	_, err = c.Get(context.Background(), "p2")
	require.NoError(t, err)
	assert.Equal(t, 2, loads)
}

func TestCache_InvalidateForcesReload(t *testing.T) {
	loads := 0
	loader := func(ctx context.Context, projectID string) ([]models.CatalogItem, error) {
		loads++
		return nil, nil
	}

	c := New(time.Minute, loader, testLogger())

	_, _ = c.Get(context.Background(), "p1")
	c.Invalidate("p1")
	_, _ = c.Get(context.Background(), "p1")
	assert.Equal(t, 2, loads)
}

func TestCache_ServesStaleOnReloadFailure(t *testing.T) {
	loads := 0
	loader := func(ctx context.Context, projectID string) ([]models.CatalogItem, error) {
		loads++
		if loads > 1 {
			return nil, errors.New("db unavailable")
		}
		return []models.CatalogItem{{ID: "u1"}}, nil
	}

	c := New(time.Nanosecond, loader, testLogger())

	_, err := c.Get(context.Background(), "p1")
	require.NoError(t, err)

	time.Sleep(time.Millisecond)

	items, err := c.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestCache_FirstLoadFailurePropagates(t *testing.T) {
	loader := func(ctx context.Context, projectID string) ([]models.CatalogItem, error) {
		return nil, errors.New("db unavailable")
	}

	c := New(time.Minute, loader, testLogger())

	_, err := c.Get(context.Background(), "p1")
	assert.Error(t, err)
}
