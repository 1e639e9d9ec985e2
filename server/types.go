package server

import "time"

const (
	// MaxClients limits concurrent websocket connections
	MaxClients = 100

	// MaxClientMessageQueueSize limits the send queue of each client
	MaxClientMessageQueueSize = 256

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout = 60 * time.Second

	// browserConnectTimeout is how long to wait for a browser connection
	// before warning that nobody is watching
	browserConnectTimeout = 5 * time.Second
)

// ServerState tracks the server lifecycle
type ServerState int32

const (
	// StateRunning is the normal operating state
	StateRunning ServerState = iota

	// StateDraining means the server is shutting down and closing connections
	StateDraining

	// StateStopped means the server has fully stopped
	StateStopped
)

// String returns a human-readable state name
func (s ServerState) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ClientMessage is a request sent by a websocket client. Type selects the
// operation; the remaining fields matter only for "convert".
type ClientMessage struct {
	Type   string  `json:"type"`
	Source string  `json:"source,omitempty"`
	Target string  `json:"target,omitempty"`
	Time   float64 `json:"time,omitempty"`
}

// Client message types.
const (
	MessageTypePing    = "ping"
	MessageTypeRefresh = "refresh"
	MessageTypeConvert = "convert"
)

// ConvertRequest asks for one timestamp conversion. Source and Target are
// device:epoch:clock identities; Time is seconds on the source clock.
type ConvertRequest struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Time   float64 `json:"time"`
}

// ConvertResponse carries the converted timestamp alongside the request
// that produced it.
type ConvertResponse struct {
	Source    string  `json:"source"`
	Target    string  `json:"target"`
	Time      float64 `json:"time"`
	Converted float64 `json:"converted"`
}

// conversionMessage frames a conversion result for the websocket protocol.
type conversionMessage struct {
	Type string `json:"type"`
	ConvertResponse
}

// errorMessage frames a failure for the websocket protocol. Error carries
// the category, description and timestamp fields the UI renders.
type errorMessage struct {
	Type  string            `json:"type"`
	Error map[string]string `json:"error"`
}

// pongMessage answers a client ping.
type pongMessage struct {
	Type string `json:"type"`
}

// directSend targets one registered client. The hub goroutine performs the
// send so client channels keep a single writer.
type directSend struct {
	client *Client
	msg    interface{}
}
