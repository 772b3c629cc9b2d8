package model

// Websocket event envelope types.
const (
	EventUnreadCount = "updateUnreadCount"
	EventError       = "error"
)

// UnreadCountEvent tells a connected client that its roster counts
// changed.
type UnreadCountEvent struct {
	Type string        `json:"type"`
	Data []RosterEntry `json:"data"`
}

// ErrorEvent reports a failed submission back to the submitting
// connection only.
type ErrorEvent struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}
