package domain

import "time"

// RoomStats is the occupancy snapshot served by the stats action. Online is
// presence-backed and may be empty when no presence store is configured.
type RoomStats struct {
	Key         string   `json:"key"`
	Connections int      `json:"connections"`
	Online      []string `json:"online,omitempty"`
}

// PresenceTTL is the inactivity threshold after which a connection stops
// counting as online. Heartbeats refresh it well inside the window.
const PresenceTTL = 45 * time.Second

// HeartbeatInterval is how often a live connection checks in with the
// presence store. Must be shorter than PresenceTTL.
const HeartbeatInterval = 30 * time.Second
