package client

import (
	"context"
	"math"
	"time"
)

// ReconnectStrategy controls how a dropped channel stream is re-established
type ReconnectStrategy struct {
	MaxRetries    int // zero or less retries forever
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultReconnectStrategy returns the default reconnection strategy
func DefaultReconnectStrategy() *ReconnectStrategy {
	return &ReconnectStrategy{
		MaxRetries:    8,
		InitialDelay:  500 * time.Millisecond,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
	}
}

// NextDelay calculates the delay before retry attempt n (zero based)
func (rs *ReconnectStrategy) NextDelay(attempt int) time.Duration {
	delay := float64(rs.InitialDelay) * math.Pow(rs.BackoffFactor, float64(attempt))
	if delay > float64(rs.MaxDelay) || math.IsInf(delay, 0) {
		return rs.MaxDelay
	}
	return time.Duration(delay)
}

// ShouldRetry determines if another retry attempt should be made
func (rs *ReconnectStrategy) ShouldRetry(attempt int) bool {
	return rs.MaxRetries <= 0 || attempt < rs.MaxRetries
}

// Wait sleeps for NextDelay(attempt). It returns false if stop is closed or
// ctx is done first.
func (rs *ReconnectStrategy) Wait(ctx context.Context, stop <-chan struct{}, attempt int) bool {
	timer := time.NewTimer(rs.NextDelay(attempt))
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-stop:
		return false
	case <-ctx.Done():
		return false
	}
}
