// Package entity projects coordinator data onto the air quality entity
// surface the host platform renders.
package entity

import (
	"math"

	"github.com/breatheroute/gios/internal/gios"
)

// DataSource is the read side of an update coordinator.
type DataSource interface {
	// StationID returns the configured station identifier.
	StationID() int

	// StationName returns the display name of the station.
	StationName() string

	// Snapshot returns the latest readings. It may be empty, never an error.
	Snapshot() gios.Snapshot
}

// DeviceIdentifier is a (domain, id) pair in the device registry.
type DeviceIdentifier struct {
	Domain string `json:"domain"`
	ID     string `json:"id"`
}

// DeviceInfo describes the device an entity belongs to.
type DeviceInfo struct {
	Identifiers  []DeviceIdentifier `json:"identifiers"`
	Name         string             `json:"name"`
	Manufacturer string             `json:"manufacturer"`
	EntryType    string             `json:"entry_type"`
}

// EntryTypeService marks devices that are online services rather than hardware.
const EntryTypeService = "service"

// AirQualityEntity is the capability set the host platform reads from an
// air quality entity.
type AirQualityEntity interface {
	Name() string
	Icon() string
	UniqueID() string
	DeviceInfo() DeviceInfo
	Attribution() string

	AirQualityIndex() *string
	ParticulateMatter25() *float64
	ParticulateMatter10() *float64
	Ozone() *float64
	CarbonMonoxide() *float64
	SulphurDioxide() *float64
	NitrogenDioxide() *float64

	ExtraStateAttributes() map[string]any
}

// AirQualityView exposes one GIOŚ station as an air quality entity.
// Every accessor reads through to the data source; only the extra
// attribute map is kept between calls.
//
// ExtraStateAttributes mutates shared state and must not be called
// concurrently; the platform serialises entity reads.
type AirQualityView struct {
	source DataSource
	name   string
	attrs  map[string]any
}

var _ AirQualityEntity = (*AirQualityView)(nil)

// NewAirQualityView creates a view over source displayed as name.
func NewAirQualityView(source DataSource, name string) *AirQualityView {
	return &AirQualityView{
		source: source,
		name:   name,
		attrs:  make(map[string]any),
	}
}

// Name returns the configured display name.
func (v *AirQualityView) Name() string {
	return v.name
}

// Icon returns the icon for the current air quality index.
func (v *AirQualityView) Icon() string {
	if index := v.AirQualityIndex(); index != nil {
		if icon, ok := gios.IconsMap[*index]; ok {
			return icon
		}
	}
	return gios.DefaultIcon
}

// AirQualityIndex returns the overall index category, or nil if not reported.
func (v *AirQualityView) AirQualityIndex() *string {
	if sensor, ok := v.source.Snapshot().Get(gios.SensorAQI); ok {
		return sensor.Index
	}
	return nil
}

var (
	particulateMatter25 = roundState(sensorValue(gios.SensorPM25))
	particulateMatter10 = roundState(sensorValue(gios.SensorPM10))
	ozone               = roundState(sensorValue(gios.SensorO3))
	carbonMonoxide      = roundState(sensorValue(gios.SensorCO))
	sulphurDioxide      = roundState(sensorValue(gios.SensorSO2))
	nitrogenDioxide     = roundState(sensorValue(gios.SensorNO2))
)

// ParticulateMatter25 returns the PM2.5 level.
func (v *AirQualityView) ParticulateMatter25() *float64 {
	return particulateMatter25(v)
}

// ParticulateMatter10 returns the PM10 level.
func (v *AirQualityView) ParticulateMatter10() *float64 {
	return particulateMatter10(v)
}

// Ozone returns the O3 level.
func (v *AirQualityView) Ozone() *float64 {
	return ozone(v)
}

// CarbonMonoxide returns the CO level.
func (v *AirQualityView) CarbonMonoxide() *float64 {
	return carbonMonoxide(v)
}

// SulphurDioxide returns the SO2 level.
func (v *AirQualityView) SulphurDioxide() *float64 {
	return sulphurDioxide(v)
}

// NitrogenDioxide returns the NO2 level.
func (v *AirQualityView) NitrogenDioxide() *float64 {
	return nitrogenDioxide(v)
}

// Attribution returns the data provider credit.
func (v *AirQualityView) Attribution() string {
	return gios.Attribution
}

// UniqueID returns the station id, which is stable across restarts.
func (v *AirQualityView) UniqueID() string {
	return gios.StationKey(v.source.StationID())
}

// DeviceInfo returns the service device this entity belongs to.
func (v *AirQualityView) DeviceInfo() DeviceInfo {
	return DeviceInfo{
		Identifiers: []DeviceIdentifier{
			{Domain: gios.Domain, ID: gios.StationKey(v.source.StationID())},
		},
		Name:         gios.DefaultName,
		Manufacturer: gios.Manufacturer,
		EntryType:    EntryTypeService,
	}
}

// ExtraStateAttributes returns the per-pollutant index attributes and the
// station name.
//
// Stations report different sensor sets, so keys are only ever added or
// overwritten. A key set by an earlier call survives even after the sensor
// drops out of the snapshot.
func (v *AirQualityView) ExtraStateAttributes() map[string]any {
	snapshot := v.source.Snapshot()
	for _, sensor := range gios.SensorMap {
		if reading, ok := snapshot.Get(sensor.Kind); ok {
			v.attrs[sensor.Name+"_index"] = indexValue(reading.Index)
		}
	}
	v.attrs[gios.AttrStation] = v.source.StationName()
	return v.attrs
}

// indexValue unwraps an index so that a missing one is stored as a plain nil.
func indexValue(index *string) any {
	if index == nil {
		return nil
	}
	return *index
}

type levelFunc func(*AirQualityView) *float64

// sensorValue returns an accessor for the raw value of kind.
func sensorValue(kind gios.SensorKind) levelFunc {
	return func(v *AirQualityView) *float64 {
		if sensor, ok := v.source.Snapshot().Get(kind); ok {
			return sensor.Value
		}
		return nil
	}
}

// roundState rounds non-integral levels to the nearest whole number.
// Ties go to the even neighbour.
func roundState(get levelFunc) levelFunc {
	return func(v *AirQualityView) *float64 {
		res := get(v)
		if res == nil || *res == math.Trunc(*res) {
			return res
		}
		rounded := math.RoundToEven(*res)
		return &rounded
	}
}
