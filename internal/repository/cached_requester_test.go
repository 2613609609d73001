package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TickChart/internal/domain/models"
	domrepo "TickChart/internal/domain/repository"
	"TickChart/pkg/cache"
)

type countingRequester struct {
	calls int
	err   error
}

func (c *countingRequester) RequestData(_ context.Context, args domrepo.RequestArgs) (*models.RawPayload, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return &models.RawPayload{
		Identifier: args.Identifier,
		Count:      1,
		Items: []*models.RawTick{{
			Date:      "2024-03-04",
			TimeOfDay: "09:30:00",
			Price:     models.NewDecimal(100),
		}},
	}, nil
}

func TestCachedRequester_HitsCache(t *testing.T) {
	mem := cache.NewMemoryCache()
	defer mem.Close()
	next := &countingRequester{}
	r := NewCachedRequester(next, mem, time.Minute, nil)
	ctx := context.Background()

	first, err := r.RequestData(ctx, domrepo.RequestArgs{Identifier: "005930"})
	require.NoError(t, err)
	second, err := r.RequestData(ctx, domrepo.RequestArgs{Identifier: "005930"})
	require.NoError(t, err)

	assert.Equal(t, 1, next.calls)
	assert.Equal(t, first.Identifier, second.Identifier)
	require.Len(t, second.Items, 1)
	assert.True(t, second.Items[0].Price.Valid)
	assert.False(t, second.Items[0].Volume.Valid)

	_, err = r.RequestData(ctx, domrepo.RequestArgs{Identifier: "000660"})
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)
}

func TestCachedRequester_Disabled(t *testing.T) {
	next := &countingRequester{}
	r := NewCachedRequester(next, cache.NewMemoryCache(), 0, nil)
	for i := 0; i < 3; i++ {
		_, err := r.RequestData(context.Background(), domrepo.RequestArgs{})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, next.calls)
}

func TestCachedRequester_ErrorsAreNotCached(t *testing.T) {
	mem := cache.NewMemoryCache()
	defer mem.Close()
	next := &countingRequester{err: errors.New("down")}
	r := NewCachedRequester(next, mem, time.Minute, nil)

	_, err := r.RequestData(context.Background(), domrepo.RequestArgs{})
	require.Error(t, err)
	ok, _ := mem.Exists(context.Background(), "ticks:_")
	assert.False(t, ok)
}
