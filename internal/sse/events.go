// Package sse streams leaderboard changes to connected clients as Server-Sent Events.
package sse

import (
	"time"

	"github.com/punkouter26/podropsquare-server/internal/domain"
)

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventConnected is sent once when a client connects.
	EventConnected EventType = "connected"
	// EventLeaderboardUpdated carries a new top-N snapshot.
	EventLeaderboardUpdated EventType = "leaderboard.updated"
	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
)

// Event is a single SSE message.
type Event struct {
	Type      EventType `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// LeaderboardEventData is the payload of leaderboard.updated.
type LeaderboardEventData struct {
	Entries        []domain.LeaderboardEntry `json:"entries"`
	GeneratedAt    time.Time                 `json:"generatedAt"`
	FreshnessToken string                    `json:"freshnessToken"`
}

// HeartbeatEventData is the data payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"serverTime"`
}

// ConnectedEventData is the data payload for the connected event.
type ConnectedEventData struct {
	ClientID string `json:"clientId"`
}

// NewLeaderboardEvent creates a leaderboard.updated event from snap.
func NewLeaderboardEvent(snap *domain.Snapshot, now time.Time) Event {
	return Event{
		Type: EventLeaderboardUpdated,
		Data: LeaderboardEventData{
			Entries:        snap.Entries,
			GeneratedAt:    snap.GeneratedAt,
			FreshnessToken: snap.FreshnessToken,
		},
		Timestamp: now,
	}
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent(now time.Time) Event {
	return Event{
		Type:      EventHeartbeat,
		Data:      HeartbeatEventData{ServerTime: now},
		Timestamp: now,
	}
}

// NewConnectedEvent creates the greeting sent to a new client.
func NewConnectedEvent(clientID string, now time.Time) Event {
	return Event{
		Type:      EventConnected,
		Data:      ConnectedEventData{ClientID: clientID},
		Timestamp: now,
	}
}
