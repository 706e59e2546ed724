package ws

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// ConnInfo is the identity snapshot taken at upgrade time. It travels with
// the connection so lifecycle events and error reports can name who
// disconnected long after the HTTP request is gone.
type ConnInfo struct {
	ConnID      string
	UserID      string
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

// newConnID returns a random 32-char hex id used to correlate a
// connection's lifecycle events.
func newConnID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return hex.EncodeToString(buf)
}
