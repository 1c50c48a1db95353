package messaging

// HealthChecker reports whether a broker connection is usable. The worker's
// readiness endpoint consults this before declaring itself ready.
type HealthChecker interface {
	// IsConnected returns true if the client is connected to the broker.
	IsConnected() bool
}

// HealthStatus represents the health state of a messaging connection.
type HealthStatus struct {
	// Connected indicates if the client is connected.
	Connected bool `json:"connected"`

	// Error contains any error message if unhealthy.
	Error string `json:"error,omitempty"`
}

// CheckClientHealth checks if a broker client is healthy.
func CheckClientHealth(client HealthChecker) HealthStatus {
	status := HealthStatus{}

	if client == nil {
		status.Error = "client is nil"
		return status
	}

	status.Connected = client.IsConnected()
	if !status.Connected {
		status.Error = "not connected to message broker"
	}

	return status
}
