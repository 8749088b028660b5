package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()
	s := miniredis.RunT(t)

	rdb, err := Open(ctx, "redis://"+s.Addr()+"/0", "", "")
	require.NoError(t, err)
	defer func() { _ = rdb.Close() }()
	assert.NoError(t, Pinger{Client: rdb}.Ping(ctx))

	s.Close()
	assert.Error(t, Pinger{Client: rdb}.Ping(ctx))
}

func TestOpen_BadURL(t *testing.T) {
	_, err := Open(context.Background(), "not a url", "", "")
	assert.Error(t, err)
}
