package observability

// EventEnvelope wraps a realtime lifecycle event (connect, disconnect,
// error) for the broker. The payload shape is owned by the emitting side.
type EventEnvelope struct {
	EventType string      `json:"event_type"`
	EventName string      `json:"event_name"`
	Payload   interface{} `json:"payload"`
}

// BuildHeaders carries request and trace correlation ids into the AMQP
// message headers. Empty ids are omitted.
func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}
