package platform

import (
	"errors"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/breatheroute/gios/internal/entity"
)

// Registry errors.
var (
	ErrDuplicateUniqueID = errors.New("entity with this unique id already registered")
	ErrEntityNotFound    = errors.New("entity not found")
)

// EntityEntry is one row of the entity registry.
type EntityEntry struct {
	EntityID string `json:"entity_id"`
	UniqueID string `json:"unique_id"`
	Platform string `json:"platform"`
	DeviceID string `json:"device_id"`
}

// EntityRegistry indexes entities by unique id and hands out entity ids.
type EntityRegistry struct {
	mu         sync.RWMutex
	byUniqueID map[string]*EntityEntry
	byEntityID map[string]*EntityEntry
}

// NewEntityRegistry creates an empty entity registry.
func NewEntityRegistry() *EntityRegistry {
	return &EntityRegistry{
		byUniqueID: make(map[string]*EntityEntry),
		byEntityID: make(map[string]*EntityEntry),
	}
}

// Register adds an entity and returns its entry. The entity id is derived
// from domain and name, with a numeric suffix when the id is taken.
func (r *EntityRegistry) Register(domain, platform, uniqueID, name, deviceID string) (*EntityEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := platform + ":" + uniqueID
	if _, ok := r.byUniqueID[key]; ok {
		return nil, ErrDuplicateUniqueID
	}

	base := domain + "." + Slugify(name)
	entityID := base
	for i := 2; ; i++ {
		if _, taken := r.byEntityID[entityID]; !taken {
			break
		}
		entityID = base + "_" + strconv.Itoa(i)
	}

	entry := &EntityEntry{
		EntityID: entityID,
		UniqueID: uniqueID,
		Platform: platform,
		DeviceID: deviceID,
	}
	r.byUniqueID[key] = entry
	r.byEntityID[entityID] = entry
	return entry, nil
}

// Remove drops an entity from the registry.
func (r *EntityRegistry) Remove(entityID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.byEntityID[entityID]; ok {
		delete(r.byUniqueID, entry.Platform+":"+entry.UniqueID)
		delete(r.byEntityID, entityID)
	}
}

// Get looks up an entity by entity id.
func (r *EntityRegistry) Get(entityID string) (*EntityEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.byEntityID[entityID]
	return entry, ok
}

// Entries returns all entries ordered by entity id.
func (r *EntityRegistry) Entries() []*EntityEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]*EntityEntry, 0, len(r.byEntityID))
	for _, entry := range r.byEntityID {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].EntityID < entries[j].EntityID })
	return entries
}

// Device is one row of the device registry.
type Device struct {
	ID string `json:"id"`
	entity.DeviceInfo
}

// DeviceRegistry deduplicates devices by their (domain, id) identifiers.
type DeviceRegistry struct {
	mu      sync.RWMutex
	devices map[string]*Device
}

// NewDeviceRegistry creates an empty device registry.
func NewDeviceRegistry() *DeviceRegistry {
	return &DeviceRegistry{devices: make(map[string]*Device)}
}

// GetOrCreate returns the device for info, creating it on first use.
// Later calls with the same identifiers replace the stored metadata; devices
// handed out earlier are never modified.
func (r *DeviceRegistry) GetOrCreate(info entity.DeviceInfo) *Device {
	id := deviceKey(info.Identifiers)

	r.mu.Lock()
	defer r.mu.Unlock()

	info.Identifiers = slices.Clone(info.Identifiers)
	device := &Device{ID: id, DeviceInfo: info}
	r.devices[id] = device
	return device
}

// Devices returns all devices ordered by id.
func (r *DeviceRegistry) Devices() []*Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	devices := make([]*Device, 0, len(r.devices))
	for _, device := range r.devices {
		devices = append(devices, device)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })
	return devices
}

func deviceKey(identifiers []entity.DeviceIdentifier) string {
	parts := make([]string, 0, len(identifiers))
	for _, id := range identifiers {
		parts = append(parts, id.Domain+":"+id.ID)
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify turns a display name into an entity id fragment.
// "GIOŚ Kraków" becomes "gios_krakow".
func Slugify(name string) string {
	folded, _, err := transform.String(stripMarks, name)
	if err != nil {
		folded = name
	}
	folded = strings.NewReplacer("ł", "l", "Ł", "L").Replace(folded)

	var b strings.Builder
	underscore := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}

	slug := strings.TrimSuffix(b.String(), "_")
	if slug == "" {
		return "unnamed"
	}
	return slug
}
