package models

// EntityState is the rendered state of one entity.
type EntityState struct {
	EntityID    string                 `json:"entityId"`
	UniqueID    string                 `json:"uniqueId,omitempty"`
	Platform    string                 `json:"platform,omitempty"`
	DeviceID    string                 `json:"deviceId,omitempty"`
	State       string                 `json:"state"`
	Attributes  map[string]interface{} `json:"attributes"`
	LastChanged Timestamp              `json:"lastChanged"`
	LastUpdated Timestamp              `json:"lastUpdated"`
}

// EntityList is the response of the entity listing.
type EntityList struct {
	Items []EntityState `json:"items"`
}

// DeviceIdentifier is a (domain, id) pair.
type DeviceIdentifier struct {
	Domain string `json:"domain"`
	ID     string `json:"id"`
}

// Device is one entry of the device registry.
type Device struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Manufacturer string             `json:"manufacturer"`
	EntryType    string             `json:"entryType"`
	Identifiers  []DeviceIdentifier `json:"identifiers"`
}

// DeviceList is the response of the device listing.
type DeviceList struct {
	Items []Device `json:"items"`
}
