package hub

import "encoding/json"

// Frame type names, agent <-> server, per the session protocol.
const (
	FrameRegister    = "register"
	FramePing        = "ping"
	FrameSMSReport   = "sms_report"
	FrameSMSIncoming = "sms_incoming"
	FrameTask        = "task"
	FrameAck         = "ack"
	FrameError       = "error"
	FramePong        = "pong"
	FrameRegistered  = "registered"
)

// Frame is the generic envelope every agent frame arrives and leaves as.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"-"`
}

type inboundFrame struct {
	Type string `json:"type"`
}

// RegisterPayload is the agent->server identity announcement.
type RegisterPayload struct {
	DeviceName  string `json:"device_name"`
	PhoneNumber string `json:"phone_number"`
}

// RegisteredPayload is the server's reply to a register frame.
type RegisteredPayload struct {
	Type     string `json:"type"`
	DeviceID string `json:"device_id"`
	Status   string `json:"status"`
}

// SMSReportPayload is the agent's ACK for a previously pushed send task.
type SMSReportPayload struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

// SMSIncomingPayload is the agent's report of a received SMS.
type SMSIncomingPayload struct {
	From      string `json:"from"`
	Body      string `json:"body"`
	Timestamp string `json:"timestamp,omitempty"`
}

// TaskPayload is a server->agent send instruction.
type TaskPayload struct {
	Type      string `json:"type"`
	MessageID string `json:"message_id"`
	To        string `json:"to"`
	Body      string `json:"body"`
}

// AckPayload acknowledges receipt of an agent frame.
type AckPayload struct {
	Type      string `json:"type"`
	MessageID string `json:"message_id,omitempty"`
	Status    string `json:"status,omitempty"`
}

// ErrorPayload is sent back for unrecognized or malformed agent frames.
type ErrorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// PongPayload answers a ping heartbeat.
type PongPayload struct {
	Type string `json:"type"`
}
