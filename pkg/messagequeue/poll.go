package messagequeue

import (
	"context"
	"time"
)

// PollReceive calls Receive in an exponential-backoff loop until at least
// one message is returned or ctx is done. It has no attempt limit of its
// own: once the delay reaches MaxDelay it keeps polling at that interval,
// so the caller bounds the wait through ctx. It gives callers an exponential backoff with a small initial delay and a
// modest cap, staying under 50 queries for a 2-second wait, as a single
// reusable helper instead of leaving every caller to reimplement the loop.
func PollReceive(ctx context.Context, q Queue, agentID string, channels []string, limit int, typeFilter string, cfg PollConfig) ([]Message, error) {
	if cfg.InitialDelay <= 0 || cfg.MaxDelay <= 0 || cfg.Multiplier <= 1 {
		cfg = DefaultPollConfig()
	}

	delay := cfg.InitialDelay
	for {
		msgs, err := q.Receive(ctx, agentID, channels, limit, typeFilter)
		if err != nil {
			return nil, err
		}
		if len(msgs) > 0 {
			return msgs, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
}
