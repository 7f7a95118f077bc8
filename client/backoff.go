package client

import (
	"math/rand"
	"time"
)

// backoff computes exponential reconnect delays with jitter, grounded on
// icegreg-chat-smpl/services/voice/internal/esl/client.go's handleReconnect
// loop: base 1s, doubling each attempt, capped at max, with ±20% jitter
// so many clients reconnecting to the same FreeSWITCH box don't thunder
// in lockstep.
type backoff struct {
	base    time.Duration
	max     time.Duration
	attempt int
	rng     *rand.Rand
}

func newBackoff(base, max time.Duration) *backoff {
	if base <= 0 {
		base = time.Second
	}
	if max <= 0 {
		max = 60 * time.Second
	}
	return &backoff{base: base, max: max, rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// next returns the delay for the current attempt and advances the
// counter.
func (b *backoff) next() time.Duration {
	d := b.base << uint(b.attempt)
	if d <= 0 || d > b.max {
		d = b.max
	}
	b.attempt++

	jitter := float64(d) * 0.2
	delta := (b.rng.Float64()*2 - 1) * jitter
	result := time.Duration(float64(d) + delta)
	if result < 0 {
		result = b.base
	}
	return result
}

// reset zeroes the attempt counter after a successful reconnect.
func (b *backoff) reset() {
	b.attempt = 0
}
