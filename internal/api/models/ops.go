package models

// Health represents the health status of the service.
type Health struct {
	Status  HealthStatus           `json:"status"`
	Time    Timestamp              `json:"time"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SystemStatus represents the overall system status.
type SystemStatus struct {
	Status    HealthStatus     `json:"status"`
	Time      Timestamp        `json:"time"`
	Stations  []StationStatus  `json:"stations"`
	Providers []ProviderStatus `json:"providers"`
}

// StationStatus reports the update coordinator of one station.
type StationStatus struct {
	StationID         int          `json:"stationId"`
	StationName       string       `json:"stationName"`
	Status            HealthStatus `json:"status"`
	HasData           bool         `json:"hasData"`
	LastUpdateSuccess bool         `json:"lastUpdateSuccess"`
	FetchedAt         *Timestamp   `json:"fetchedAt,omitempty"`
	LastSuccessAt     *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt     *Timestamp   `json:"lastFailureAt,omitempty"`
	LastError         *string      `json:"lastError,omitempty"`
	CircuitState      string       `json:"circuitState"`
}

// ProviderStatus represents the status of a guarded upstream call.
type ProviderStatus struct {
	Provider      string       `json:"provider"`
	Status        HealthStatus `json:"status"`
	Requests      uint32       `json:"requests"`
	Failures      uint32       `json:"consecutiveFailures"`
	LastSuccessAt *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt *Timestamp   `json:"lastFailureAt,omitempty"`
	Message       *string      `json:"message,omitempty"`
}
