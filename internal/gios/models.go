// Package gios defines the data model shared by the GIOŚ coordinator and the
// air quality entity: sensor kinds, index categories and the station snapshot.
package gios

import (
	"strconv"
	"time"
)

// Integration constants.
const (
	Domain       = "gios"
	DefaultName  = "GIOŚ"
	Manufacturer = "Główny Inspektorat Ochrony Środowiska"
	Attribution  = "Data provided by GIOŚ"

	// AttrStation is the extra state attribute holding the station name.
	AttrStation = "station"

	// DefaultScanInterval is how often the coordinator polls the service.
	DefaultScanInterval = 30 * time.Minute

	// DefaultIcon is used when the air quality index is missing or unknown.
	DefaultIcon = "mdi:blur"

	// ConcentrationUnit is the unit of every pollutant level.
	ConcentrationUnit = "µg/m³"
)

// SensorKind identifies one pollutant or the overall index as reported by the service.
type SensorKind string

const (
	SensorAQI  SensorKind = "AQI"
	SensorCO   SensorKind = "CO"
	SensorNO2  SensorKind = "NO2"
	SensorO3   SensorKind = "O3"
	SensorPM10 SensorKind = "PM10"
	SensorPM25 SensorKind = "PM2.5"
	SensorSO2  SensorKind = "SO2"
)

// Air quality entity attribute names.
const (
	AttrAirQualityIndex      = "air_quality_index"
	AttrCarbonMonoxide       = "carbon_monoxide"
	AttrNitrogenDioxide      = "nitrogen_dioxide"
	AttrOzone                = "ozone"
	AttrParticulateMatter10  = "particulate_matter_10"
	AttrParticulateMatter2_5 = "particulate_matter_2_5"
	AttrSulphurDioxide       = "sulphur_dioxide"
)

// SensorName pairs a sensor kind with its attribute name.
type SensorName struct {
	Kind SensorKind
	Name string
}

// SensorMap lists the pollutants exposed as "<name>_index" attributes.
// The overall AQI is intentionally absent.
var SensorMap = []SensorName{
	{Kind: SensorCO, Name: AttrCarbonMonoxide},
	{Kind: SensorNO2, Name: AttrNitrogenDioxide},
	{Kind: SensorO3, Name: AttrOzone},
	{Kind: SensorPM10, Name: AttrParticulateMatter10},
	{Kind: SensorPM25, Name: AttrParticulateMatter2_5},
	{Kind: SensorSO2, Name: AttrSulphurDioxide},
}

// Index category labels published by the service.
const (
	IndexVeryGood = "bardzo dobry"
	IndexGood     = "dobry"
	IndexModerate = "umiarkowany"
	IndexPoor     = "dostateczny"
	IndexVeryPoor = "zły"
)

// IconsMap maps an overall index category to an icon.
var IconsMap = map[string]string{
	IndexVeryGood: "mdi:emoticon-excited",
	IndexGood:     "mdi:emoticon-happy",
	IndexModerate: "mdi:emoticon-neutral",
	IndexPoor:     "mdi:emoticon-sad",
	IndexVeryPoor: "mdi:emoticon-dead",
}

// Sensor is a single reading. Either field may be nil when the service
// did not report it.
type Sensor struct {
	Value *float64 `json:"value"`
	Index *string  `json:"index"`
}

// Snapshot maps sensor kinds to readings. A station may report any subset
// of kinds; a missing key means no reading is available.
type Snapshot map[SensorKind]Sensor

// Get returns the reading for kind and whether it is present.
func (s Snapshot) Get(kind SensorKind) (Sensor, bool) {
	sensor, ok := s[kind]
	return sensor, ok
}

// Clone returns a deep copy of s. A nil snapshot clones to an empty one.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for kind, sensor := range s {
		if sensor.Value != nil {
			sensor.Value = Float(*sensor.Value)
		}
		if sensor.Index != nil {
			sensor.Index = String(*sensor.Index)
		}
		out[kind] = sensor
	}
	return out
}

// Data is what the coordinator hands out after a successful update.
type Data struct {
	StationID   int       `json:"station_id"`
	StationName string    `json:"station_name"`
	Sensors     Snapshot  `json:"sensors"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// Clone returns a deep copy of d.
func (d *Data) Clone() *Data {
	if d == nil {
		return nil
	}
	out := *d
	out.Sensors = d.Sensors.Clone()
	return &out
}

// StationKey returns the station id in the string form used for unique ids.
func StationKey(stationID int) string {
	return strconv.Itoa(stationID)
}

// Float returns a pointer to v. Handy when building snapshots.
func Float(v float64) *float64 {
	return &v
}

// String returns a pointer to v.
func String(v string) *string {
	return &v
}
