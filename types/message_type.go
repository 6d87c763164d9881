package types

type MessageType string

const (
	ConnectionStatusMessage MessageType = "CONNECTION_STATUS"
)

type ConnectionStatus string

const (
	ConnectionSucceed ConnectionStatus = "SUCCEEDED"
	ConnectionFailed  ConnectionStatus = "FAILED"
)

// StatusRow is the result of one connectivity probe.
type StatusRow struct {
	Target  string           `json:"target"`
	Status  ConnectionStatus `json:"status"`
	Message string           `json:"message,omitempty"`
}

// CommandOutput is what the check command prints.
type CommandOutput struct {
	Type             MessageType `json:"type"`
	ConnectionStatus []StatusRow `json:"connectionStatus,omitempty"`
}
