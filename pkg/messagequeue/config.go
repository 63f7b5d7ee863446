package messagequeue

import "time"

// PollConfig configures PollReceive's exponential-backoff poll loop, tuned
// to stay under 50 queries for a 2-second wait.
type PollConfig struct {
	InitialDelay time.Duration `env:"MSG_POLL_INITIAL_DELAY" env-default:"20ms"`
	MaxDelay     time.Duration `env:"MSG_POLL_MAX_DELAY" env-default:"500ms"`
	Multiplier   float64       `env:"MSG_POLL_MULTIPLIER" env-default:"1.6"`
}

// DefaultPollConfig returns the tuning used when PollReceive's caller
// passes a zero-value PollConfig.
func DefaultPollConfig() PollConfig {
	return PollConfig{
		InitialDelay: 20 * time.Millisecond,
		MaxDelay:     500 * time.Millisecond,
		Multiplier:   1.6,
	}
}
