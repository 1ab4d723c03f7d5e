package transport

import (
	"context"
	"math/rand"
	"net"
	"testing"
	"time"

	"github.com/danmuck/marquee/internal/protocol"
	"github.com/danmuck/marquee/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
)

func TestBackoffDelayGrowsAndCaps(t *testing.T) {
	b := Backoff{InitialDelay: 100 * time.Millisecond, Multiplier: 2, MaxDelay: 300 * time.Millisecond}
	require.Equal(t, 100*time.Millisecond, b.Delay(1, nil))
	require.Equal(t, 200*time.Millisecond, b.Delay(2, nil))
	require.Equal(t, 300*time.Millisecond, b.Delay(3, nil))
	require.Equal(t, 300*time.Millisecond, b.Delay(10, nil))

	require.Zero(t, Backoff{}.Delay(3, nil))
}

func TestBackoffJitterBounds(t *testing.T) {
	b := Backoff{InitialDelay: 100 * time.Millisecond, Multiplier: 1, Jitter: true}
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		d := b.Delay(2, rng)
		require.GreaterOrEqual(t, d, 50*time.Millisecond)
		require.Less(t, d, 150*time.Millisecond)
	}
	require.Equal(t, 50*time.Millisecond, b.Delay(2, nil))
}

func TestDialRetryGivesUp(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	b := Backoff{InitialDelay: time.Millisecond, Multiplier: 1}
	_, err = DialRetry(context.Background(), addr, protocol.DefaultCodec(), 3, b)
	require.Error(t, err)
}
