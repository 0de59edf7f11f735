// Package protocol defines the JSON messages exchanged over the control
// websocket.
package protocol

import "encoding/json"

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// TypeStatus is broadcast by the server on every state change
	TypeStatus MessageType = "status"

	// TypeLog is broadcast by the server for every activity log line
	TypeLog MessageType = "log"

	// TypeCommand is sent by a client to drive the recorder or player
	TypeCommand MessageType = "command"

	// TypeError is sent back to a client whose command failed
	TypeError MessageType = "error"

	// TypeSyncRequest is sent by a client to request status and recent logs
	TypeSyncRequest MessageType = "sync_req"

	// TypeSyncResponse is sent by the server in reply to TypeSyncRequest
	TypeSyncResponse MessageType = "sync_resp"
)

// Command actions carried by CommandPayload
const (
	ActionRecord = "record"
	ActionPause  = "pause"
	ActionStop   = "stop"
	ActionPlay   = "play"
	ActionSave   = "save"
	ActionLoad   = "load"
	ActionSpeed  = "speed"
)

// Message is the generic container for all WebSocket messages
type Message struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// DecodePayload converts the loosely typed payload into v
func (m Message) DecodePayload(v interface{}) error {
	data, err := json.Marshal(m.Payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// StatusPayload is the payload for TypeStatus
type StatusPayload struct {
	State          string  `json:"state"`
	EventsRecorded int     `json:"events_recorded"`
	EventsPlayed   int     `json:"events_played"`
	TotalEvents    int     `json:"total_events"`
	RecordingTime  float64 `json:"recording_time"`
	Speed          float64 `json:"speed"`
	File           string  `json:"file,omitempty"`
	Session        string  `json:"session,omitempty"`
}

// LogPayload is the payload for TypeLog
type LogPayload struct {
	Line string `json:"line"`
}

// CommandPayload is the payload for TypeCommand
type CommandPayload struct {
	Action string  `json:"action"`
	Path   string  `json:"path,omitempty"`  // save and load
	Speed  float64 `json:"speed,omitempty"` // speed
}

// ErrorPayload is the payload for TypeError
type ErrorPayload struct {
	Action  string `json:"action"`
	Message string `json:"message"`
}

// SyncResponsePayload is the payload for TypeSyncResponse
type SyncResponsePayload struct {
	Status StatusPayload `json:"status"`
	Logs   []string      `json:"logs"`
}
