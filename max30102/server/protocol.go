package server

import (
	"github.com/alinrajpoot/max30102-simulator/max30102/device"
	"github.com/alinrajpoot/max30102-simulator/max30102/model"
)

// The wire protocol is line-delimited JSON: one self-describing message
// per line, in both directions.

// welcomeMessage is sent once on connection establishment.
type welcomeMessage struct {
	Type    string      `json:"type"`
	Message string      `json:"message"`
	Config  model.State `json:"config"`
}

// commandRequest is what clients send. Only the fields relevant to the
// named command are expected to be set.
type commandRequest struct {
	Command    string         `json:"command"`
	Parameters map[string]any `json:"parameters"`
	Scenario   string         `json:"scenario"`
}

// commandResponse acknowledges a commandRequest on the connection that
// sent it.
type commandResponse struct {
	Type     string        `json:"type"`
	Command  string        `json:"command"`
	Success  bool          `json:"success"`
	Error    string        `json:"error,omitempty"`
	Scenario string        `json:"scenario,omitempty"`
	NewState *model.State  `json:"new_state,omitempty"`
	Status   *statusReport `json:"status,omitempty"`
}

// statusReport answers the get_status command.
type statusReport struct {
	ClientsConnected int           `json:"clients_connected"`
	ModelState       model.State   `json:"model_state"`
	SensorStatus     device.Status `json:"sensor_status"`
}

// errorMessage reports malformed client input.
type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
