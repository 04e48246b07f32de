package types

import (
	"encoding/json"
	"time"
)

// Channel names carried as WSMessage types. The request/response pair is
// the RPC path; the c2c pair is the opaque peer relay.
const (
	ChannelRequest      = "e2ee-request"
	ChannelResponse     = "e2ee-response"
	ChannelPeerRequest  = "e2ee-c2c-request"
	ChannelPeerResponse = "e2ee-c2c-response"
)

// Broadcast event names emitted to all members of a room.
const (
	EventRoomFull      = "room-full"
	EventUserLeft      = "user-left"
	EventStartTransfer = "start-transfer"
)

// WSMessage is the websocket frame: an event name plus its payload.
type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// APIRequest names a remote call: {module, method, params[]}.
type APIRequest struct {
	Module string            `json:"module"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// BridgeRequest is the correlation envelope around an APIRequest. The
// correlation engine itself lives client-side; the server only echoes id,
// scope, remoteId and peerOrigin back on the response.
type BridgeRequest struct {
	ID         int64           `json:"id"`
	Data       APIRequest      `json:"data"`
	Scope      string          `json:"scope,omitempty"`
	RemoteID   json.RawMessage `json:"remoteId,omitempty"`
	PeerOrigin string          `json:"peerOrigin,omitempty"`
}

// BridgeError is the wire shape of a failed call.
type BridgeError struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// BridgeResponse carries either a result or an error back to the caller.
type BridgeResponse struct {
	ID         int64           `json:"id"`
	Result     interface{}     `json:"result,omitempty"`
	Error      *BridgeError    `json:"error,omitempty"`
	Scope      string          `json:"scope,omitempty"`
	RemoteID   json.RawMessage `json:"remoteId,omitempty"`
	PeerOrigin string          `json:"peerOrigin,omitempty"`
}

// PeerRelayEnvelope wraps an opaque payload relayed verbatim to the other
// members of a room. The server never interprets the payload beyond
// reading the method name for rate limiting.
type PeerRelayEnvelope struct {
	Payload json.RawMessage `json:"payload"`
	RoomID  string          `json:"roomId"`
}

// RoomUser is one member of a room. SocketID is the owning connection's
// identity; it is used for lookup only and never serialized to peers.
type RoomUser struct {
	ID              string    `json:"id"`
	SocketID        string    `json:"-"`
	JoinedAt        time.Time `json:"joinedAt"`
	AppPlatform     string    `json:"appPlatform"`
	AppPlatformName string    `json:"appPlatformName"`
	AppVersion      string    `json:"appVersion"`
	AppBuildNumber  string    `json:"appBuildNumber"`
	AppDeviceName   string    `json:"appDeviceName"`
}

// TransferDirection is the negotiated sender/receiver pair within a room.
type TransferDirection struct {
	FromUserID string `json:"fromUserId"`
	ToUserID   string `json:"toUserId"`
}

// JoinRoomParams carries the room id plus client-reported metadata.
type JoinRoomParams struct {
	RoomID          string `json:"roomId"`
	AppPlatform     string `json:"appPlatform"`
	AppPlatformName string `json:"appPlatformName"`
	AppVersion      string `json:"appVersion"`
	AppBuildNumber  string `json:"appBuildNumber"`
	AppDeviceName   string `json:"appDeviceName"`
}

type CreateRoomResult struct {
	RoomID        string `json:"roomId"`
	EncryptionKey string `json:"encryptionKey"`
}

type JoinRoomResult struct {
	Success   bool   `json:"success"`
	UserID    string `json:"userId"`
	RoomID    string `json:"roomId"`
	RoomKey   string `json:"roomKey"`
	UserCount int    `json:"userCount"`
}

type LeaveRoomParams struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

type LeaveRoomResult struct {
	Success       bool `json:"success"`
	UserCount     int  `json:"userCount"`
	RoomDestroyed bool `json:"roomDestroyed"`
}

type GetRoomUsersParams struct {
	RoomID string `json:"roomId"`
}

type StartTransferParams struct {
	RoomID     string `json:"roomId"`
	FromUserID string `json:"fromUserId"`
	ToUserID   string `json:"toUserId"`
}

// RoomListItem is the transport-facing room snapshot used by the stats
// endpoint. Not reachable through the RPC dispatcher.
type RoomListItem struct {
	RoomID       string    `json:"roomId"`
	UserCount    int       `json:"userCount"`
	MaxUsers     int       `json:"maxUsers"`
	Users        []string  `json:"users"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
}

// Broadcast payloads.

type RoomFullEvent struct {
	RoomID    string `json:"roomId"`
	UserCount int    `json:"userCount"`
}

type UserLeftEvent struct {
	RoomID    string `json:"roomId"`
	UserID    string `json:"userId"`
	UserCount int    `json:"userCount"`
}

type StartTransferEvent struct {
	RoomID       string `json:"roomId"`
	FromUserID   string `json:"fromUserId"`
	ToUserID     string `json:"toUserId"`
	RandomNumber string `json:"randomNumber"`
}
