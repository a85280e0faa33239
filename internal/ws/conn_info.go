package ws

import "time"

// ConnInfo carries per-connection identity used in published ws events.
type ConnInfo struct {
	ConnID      string
	UserID      int
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}
