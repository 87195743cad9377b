package model

import "time"

// ParticipantInfo is the public view of a participant as it appears in rosters.
type ParticipantInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	IsHost      bool   `json:"isHost"`
}

// Roster maps participant id to its public view.
type Roster map[string]ParticipantInfo

// Member is a participant together with its outbound connection.
// The connection is owned by the transport layer.
type Member struct {
	ParticipantInfo
	Conn *Conn
}

// Anchor is the server's record of when playback started in a room.
// All values are unix milliseconds except StartTime, which is whatever
// the host player reported.
type Anchor struct {
	StartTime           float64 `json:"startTime"`
	ServerTimeAtCapture int64   `json:"serverTimeAtCapture"`
	LastUpdate          int64   `json:"lastUpdate"`
}

// RoomInfo is a point-in-time summary of a room used for status reporting.
type RoomInfo struct {
	Code         string    `json:"roomCode"`
	HostID       string    `json:"hostId"`
	Participants int       `json:"participants"`
	CreatedAt    time.Time `json:"createdAt"`
	AudioActive  bool      `json:"isAudioActive"`
}

// Stats holds registry totals.
type Stats struct {
	Rooms       int `json:"rooms"`
	Connections int `json:"connections"`
}

// Removal describes the outcome of removing a connection from its room.
type Removal struct {
	RoomCode      string
	ParticipantID string
	// Destroyed is set when the removal emptied the room.
	Destroyed bool
	// NewHostID is set when the host left and another participant took over.
	NewHostID string
	Roster    Roster
}
