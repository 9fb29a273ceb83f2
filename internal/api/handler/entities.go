package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/breatheroute/gios/internal/api/models"
	"github.com/breatheroute/gios/internal/api/response"
	"github.com/breatheroute/gios/internal/platform"
)

// EntitySource is the read side of the host platform.
type EntitySource interface {
	States() []platform.State
	State(entityID string) (platform.State, bool)
	Entities() []*platform.EntityEntry
	Devices() []*platform.Device
}

// EntitiesHandler serves entity states and the device registry.
type EntitiesHandler struct {
	source EntitySource
}

// NewEntitiesHandler creates a new EntitiesHandler.
func NewEntitiesHandler(source EntitySource) *EntitiesHandler {
	return &EntitiesHandler{source: source}
}

// ListEntities handles GET /v1/entities.
func (h *EntitiesHandler) ListEntities(w http.ResponseWriter, r *http.Request) {
	entries := h.entries()
	states := h.source.States()

	list := models.EntityList{Items: make([]models.EntityState, 0, len(states))}
	for _, s := range states {
		list.Items = append(list.Items, entityState(s, entries[s.EntityID]))
	}
	response.JSON(w, r, http.StatusOK, list)
}

// GetEntity handles GET /v1/entities/{entityId}.
func (h *EntitiesHandler) GetEntity(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "entityId")
	if !strings.HasPrefix(entityID, platform.EntityDomain+".") {
		response.BadRequest(w, r, "invalid entity id", []models.FieldError{{
			Field:   "entityId",
			Message: "must start with " + platform.EntityDomain + ".",
			Code:    "INVALID_DOMAIN",
		}})
		return
	}

	state, ok := h.source.State(entityID)
	if !ok {
		response.NotFound(w, r, "entity "+entityID+" not found")
		return
	}
	response.JSON(w, r, http.StatusOK, entityState(state, h.entries()[entityID]))
}

// ListDevices handles GET /v1/devices.
func (h *EntitiesHandler) ListDevices(w http.ResponseWriter, r *http.Request) {
	devices := h.source.Devices()

	list := models.DeviceList{Items: make([]models.Device, 0, len(devices))}
	for _, d := range devices {
		device := models.Device{
			ID:           d.ID,
			Name:         d.Name,
			Manufacturer: d.Manufacturer,
			EntryType:    d.EntryType,
			Identifiers:  make([]models.DeviceIdentifier, 0, len(d.Identifiers)),
		}
		for _, id := range d.Identifiers {
			device.Identifiers = append(device.Identifiers, models.DeviceIdentifier{Domain: id.Domain, ID: id.ID})
		}
		list.Items = append(list.Items, device)
	}
	response.JSON(w, r, http.StatusOK, list)
}

func (h *EntitiesHandler) entries() map[string]*platform.EntityEntry {
	entries := h.source.Entities()
	byID := make(map[string]*platform.EntityEntry, len(entries))
	for _, e := range entries {
		byID[e.EntityID] = e
	}
	return byID
}

func entityState(s platform.State, entry *platform.EntityEntry) models.EntityState {
	out := models.EntityState{
		EntityID:    s.EntityID,
		State:       s.State,
		Attributes:  s.Attributes,
		LastChanged: models.Timestamp(s.LastChanged),
		LastUpdated: models.Timestamp(s.LastUpdated),
	}
	if out.Attributes == nil {
		out.Attributes = map[string]interface{}{}
	}
	if entry != nil {
		out.UniqueID = entry.UniqueID
		out.Platform = entry.Platform
		out.DeviceID = entry.DeviceID
	}
	return out
}
