package model

// Status tracks how far a message has progressed toward its recipient.
// It only ever moves forward: sent -> delivered -> read.
type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
)

var statusRank = map[Status]int{
	StatusSent:      0,
	StatusDelivered: 1,
	StatusRead:      2,
}

// Valid reports whether s is one of the known delivery states.
func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// Next returns the status that follows s. ok is false when s is
// terminal or unknown.
func (s Status) Next() (next Status, ok bool) {
	switch s {
	case StatusSent:
		return StatusDelivered, true
	case StatusDelivered:
		return StatusRead, true
	default:
		return "", false
	}
}

// CanAdvanceTo reports whether moving from s to target is a legal
// single forward step. Skipping a state or going backwards is never
// allowed.
func (s Status) CanAdvanceTo(target Status) bool {
	next, ok := s.Next()
	return ok && next == target
}
