package ws

// Proctor stream frames. The stream carries bare JSON objects, no envelope.

// IncidentFrame is sent by the client for every integrity violation it observes.
type IncidentFrame struct {
	ViolationType string `json:"violation_type"`
}

// IncidentReply acknowledges an incident with the running count and session status.
type IncidentReply struct {
	ViolationCount int    `json:"violation_count"`
	Status         string `json:"status"`
}

// ErrorFrame reports a rejected frame.
type ErrorFrame struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
