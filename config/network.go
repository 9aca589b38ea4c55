package config

import (
	"errors"
	"fmt"
	"time"
)

// NetworkConfig holds the lockstep policy knobs. None of these values are
// part of the wire protocol; host and clients may tune them independently as
// long as Validate passes.
type NetworkConfig struct {
	Port          uint   // TCP port the host listens on
	WebSocketPort uint   // 0 disables the WebSocket listener
	MaxPlayers    int    // Slots created by the default session settings
	DefaultSpeed  uint16 // Desired speed of every peer at launch (ms of game time per s)

	// Time commitment
	ServerTimestampInterval time.Duration // Wall clock between TIME commits by the host
	ClientTimestampInterval time.Duration // Wall clock between TIME acks from clients
	HangMultiplier          int32         // Lag beyond this many client intervals (speed scaled) counts as hung

	// Desync detection
	SyncReportInterval int32 // Committed game ms between sync report rounds

	// Keepalive
	PingInterval time.Duration

	// Chat flood control per client
	ChatRate  float64 // Messages per second
	ChatBurst int

	// Fill slots vacated mid-game with a computer player instead of leaving them open
	BackfillComputer bool
}

// DefaultNetwork returns the tuned defaults.
func DefaultNetwork() NetworkConfig {
	return NetworkConfig{
		Port:          7396,
		WebSocketPort: 0,
		MaxPlayers:    4,
		DefaultSpeed:  1000,

		ServerTimestampInterval: 100 * time.Millisecond,
		ClientTimestampInterval: 500 * time.Millisecond,
		HangMultiplier:          5,

		SyncReportInterval: 10000,

		PingInterval: 2 * time.Second,

		ChatRate:  2,
		ChatBurst: 5,

		BackfillComputer: true,
	}
}

// HangThreshold returns the lag in game ms beyond which a client counts as
// hung at the given network speed.
func (c NetworkConfig) HangThreshold(speed uint32) int32 {
	return int32(int64(c.HangMultiplier) * c.ClientTimestampInterval.Milliseconds() * int64(speed) / 1000)
}

// Validate checks the qualitative constraints the protocol relies on: hang
// detection must be slower than the client heartbeat, and sync reports must
// be rarer than time commits.
func (c NetworkConfig) Validate() error {
	var errs []error
	if c.ServerTimestampInterval <= 0 {
		errs = append(errs, errors.New("server timestamp interval must be positive"))
	}
	if c.ClientTimestampInterval <= 0 {
		errs = append(errs, errors.New("client timestamp interval must be positive"))
	}
	if c.HangMultiplier <= 1 {
		errs = append(errs, fmt.Errorf("hang multiplier %d must be greater than 1", c.HangMultiplier))
	}
	if int64(c.SyncReportInterval) <= c.ServerTimestampInterval.Milliseconds() {
		errs = append(errs, fmt.Errorf("sync report interval %dms must exceed the server timestamp interval %s",
			c.SyncReportInterval, c.ServerTimestampInterval))
	}
	if c.PingInterval <= 0 {
		errs = append(errs, errors.New("ping interval must be positive"))
	}
	if c.MaxPlayers < 1 || c.MaxPlayers > 255 {
		errs = append(errs, fmt.Errorf("max players %d out of range", c.MaxPlayers))
	}
	if c.ChatRate <= 0 || c.ChatBurst < 1 {
		errs = append(errs, errors.New("chat rate and burst must be positive"))
	}
	return errors.Join(errs...)
}
