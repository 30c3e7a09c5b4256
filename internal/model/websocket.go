package model

// WebSocket message types
const (
	WSMessageTypeQueue = "queue"
	WSMessageTypeError = "error"
	WSMessageTypePing  = "ping"
	WSMessageTypePong  = "pong"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSQueueMessage carries the extended queue to subscribed listeners.
type WSQueueMessage struct {
	Type        string      `json:"type"`
	StationID   string      `json:"stationId"`
	Items       []QueueItem `json:"items"`
	IsExtending bool        `json:"isExtending"`
}

// WSErrorMessage represents an error
type WSErrorMessage struct {
	Type      string  `json:"type"`
	StationID string  `json:"stationId"`
	Error     WSError `json:"error"`
}

// WSError represents error details
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
