// Package protocol defines the WebSocket message types exchanged between
// the avatar engine and remote renderers or talk-signal sources.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Engine → client messages
	TypeFrame   MessageType = "frame"    // Posed skeleton for one tick
	TypeStatus  MessageType = "status"   // Avatar status snapshot
	TypeTalkAck MessageType = "talk_ack" // Talk session accepted
	TypeError   MessageType = "error"    // Rejected request

	// Client → engine messages
	TypeTalk     MessageType = "talk"      // Start talking
	TypeTalkStop MessageType = "talk_stop" // Stop talking

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	return &msg, nil
}

// =============================================================================
// Engine → Client Message Types
// =============================================================================

// FrameData is one rendered tick.
type FrameData struct {
	AvatarID    string             `json:"avatar_id"`
	Seq         uint64             `json:"seq"`
	ClockMs     int64              `json:"clock_ms"`
	RootYaw     float64            `json:"root_yaw"` // Radians about +Y
	Talking     bool               `json:"talking"`
	Bones       []BoneData         `json:"bones"`
	Expressions map[string]float64 `json:"expressions,omitempty"`
}

// BoneData is the world transform of a bone.
type BoneData struct {
	Name     string     `json:"name"`
	Position [3]float64 `json:"position"` // x, y, z
	Rotation [4]float64 `json:"rotation"` // x, y, z, w
}

// TalkAck confirms a talk request.
type TalkAck struct {
	Session    string `json:"session"`
	DurationMs int64  `json:"duration_ms"`
}

// ErrorData describes a rejected request.
type ErrorData struct {
	Request MessageType `json:"request,omitempty"`
	Message string      `json:"message"`
}

// =============================================================================
// Client → Engine Message Types
// =============================================================================

// TalkData starts a talk session. When DurationMs is zero and Text is set,
// the duration is estimated from the text. Both zero talks until stopped.
type TalkData struct {
	DurationMs int64  `json:"duration_ms,omitempty"`
	Text       string `json:"text,omitempty"`
}

// =============================================================================
// Bidirectional Message Types
// =============================================================================

// PingData contains ping information
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains pong response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
