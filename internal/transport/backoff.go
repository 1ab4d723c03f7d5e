package transport

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/danmuck/marquee/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Backoff shapes the delay between dial attempts.
type Backoff struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

func DefaultBackoff() Backoff {
	return Backoff{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
		Jitter:       true,
	}
}

// Delay returns the wait before attempt N (1-based); the first attempt waits
// InitialDelay.
func (b Backoff) Delay(attempt int, rng *rand.Rand) time.Duration {
	if b.InitialDelay <= 0 {
		return 0
	}
	if attempt <= 1 {
		return b.InitialDelay
	}
	mult := b.Multiplier
	if mult < 1.0 {
		mult = 1.0
	}
	delay := float64(b.InitialDelay) * math.Pow(mult, float64(attempt-1))
	if b.MaxDelay > 0 && delay > float64(b.MaxDelay) {
		delay = float64(b.MaxDelay)
	}
	if b.Jitter {
		f := 0.5
		if rng != nil {
			f = 0.5 + rng.Float64()
		}
		delay *= f
	}
	return time.Duration(delay)
}

// DialRetry calls Dial up to attempts times, sleeping per b between failures.
func DialRetry(ctx context.Context, addr string, codec protocol.Codec, attempts int, b Backoff) (Conn, error) {
	if attempts < 1 {
		attempts = 1
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		conn, err := Dial(ctx, addr, codec)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		delay := b.Delay(attempt, rng)
		log.Debug().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("transport.DialRetry retrying")
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, lastErr
}
