package model

import "encoding/json"

// Inbound message types.
const (
	TypeCreateRoom         = "create-room"
	TypeJoinRoom           = "join-room"
	TypeLeaveRoom          = "leave-room"
	TypeAudioStarted       = "audio-started"
	TypeAudioStopped       = "audio-stopped"
	TypeSyncUpdate         = "sync-update"
	TypeWebRTCOffer        = "webrtc-offer"
	TypeWebRTCAnswer       = "webrtc-answer"
	TypeWebRTCIceCandidate = "webrtc-ice-candidate"
	TypeSyncRequest        = "sync-request"
	TypePing               = "ping"
)

// Outbound-only message types. audio-started, audio-stopped, sync-update
// and the webrtc-* types are also sent outbound under the same names.
const (
	TypeConnected     = "connected"
	TypeError         = "error"
	TypeRoomCreated   = "room-created"
	TypeRoomJoined    = "room-joined"
	TypeUserJoined    = "user-joined"
	TypeUserLeft      = "user-left"
	TypeSyncTimestamp = "sync-timestamp"
	TypePong          = "pong"
)

// Envelope is the inbound wire format.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Message is the outbound wire format.
type Message struct {
	Type    string `json:"type"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// Request is one decoded inbound message. The set of implementations is closed.
type Request interface {
	RequestType() string
}

type CreateRoomRequest struct {
	DisplayName string `json:"displayName" validate:"required"`
}

type JoinRoomRequest struct {
	DisplayName string `json:"displayName" validate:"required"`
	RoomCode    string `json:"roomCode" validate:"required"`
}

type LeaveRoomRequest struct{}

type AudioStartedRequest struct {
	RoomCode  string  `json:"roomCode" validate:"required"`
	StartTime float64 `json:"startTime"`
}

type AudioStoppedRequest struct {
	RoomCode string `json:"roomCode" validate:"required"`
}

type SyncUpdateRequest struct {
	RoomCode  string  `json:"roomCode" validate:"required"`
	StartTime float64 `json:"startTime"`
}

// SignalRequest covers webrtc-offer, webrtc-answer and webrtc-ice-candidate.
type SignalRequest struct {
	Kind                string          `json:"-"`
	RoomCode            string          `json:"roomCode" validate:"required"`
	TargetParticipantID string          `json:"targetParticipantId" validate:"required"`
	Payload             json.RawMessage `json:"payload"`
}

type SyncRequest struct {
	RoomCode        string  `json:"roomCode"`
	ClientTimestamp float64 `json:"clientTimestamp"`
}

type PingRequest struct {
	ClientTimestamp float64 `json:"clientTimestamp"`
	ParticipantID   string  `json:"participantId"`
}

func (CreateRoomRequest) RequestType() string   { return TypeCreateRoom }
func (JoinRoomRequest) RequestType() string     { return TypeJoinRoom }
func (LeaveRoomRequest) RequestType() string    { return TypeLeaveRoom }
func (AudioStartedRequest) RequestType() string { return TypeAudioStarted }
func (AudioStoppedRequest) RequestType() string { return TypeAudioStopped }
func (SyncUpdateRequest) RequestType() string   { return TypeSyncUpdate }
func (r SignalRequest) RequestType() string     { return r.Kind }
func (SyncRequest) RequestType() string         { return TypeSyncRequest }
func (PingRequest) RequestType() string         { return TypePing }

type ConnectedData struct {
	ServerTime int64 `json:"serverTime"`
}

// CurrentTiming lets a late joiner compute playback position without
// waiting for the next sync-update.
type CurrentTiming struct {
	Anchor
	Offset int64 `json:"offset"`
}

// RoomData is sent with room-created and room-joined.
type RoomData struct {
	RoomCode      string         `json:"roomCode"`
	ParticipantID string         `json:"participantId"`
	Participants  Roster         `json:"participants"`
	CurrentTiming *CurrentTiming `json:"currentTiming,omitempty"`
}

type UserJoinedData struct {
	Participant  ParticipantInfo `json:"participant"`
	Participants Roster          `json:"participants"`
}

type UserLeftData struct {
	ParticipantID string `json:"participantId"`
	Participants  Roster `json:"participants"`
}

// TimingData is sent with audio-started and sync-update.
// ServerTime is stamped right before the message leaves the broadcaster.
type TimingData struct {
	RoomCode   string  `json:"roomCode"`
	StartTime  float64 `json:"startTime"`
	ServerTime int64   `json:"serverTime"`
}

type AudioStoppedData struct {
	RoomCode string `json:"roomCode"`
}

type SignalData struct {
	FromParticipantID string          `json:"fromParticipantId"`
	Payload           json.RawMessage `json:"payload,omitempty"`
	Timestamp         int64           `json:"timestamp"`
	SyncAnchor        *Anchor         `json:"syncAnchor,omitempty"`
}

type SyncTimestampData struct {
	RoomCode        string  `json:"roomCode,omitempty"`
	ServerTime      int64   `json:"serverTime"`
	ClientTimestamp float64 `json:"clientTimestamp"`
}

type PongData struct {
	ClientTimestamp float64 `json:"clientTimestamp"`
	ServerTime      int64   `json:"serverTime"`
	ParticipantID   string  `json:"participantId"`
}
