package entity

import (
	"strconv"

	"github.com/breatheroute/gios/internal/gios"
)

// StateUnknown is reported when the primary level is unavailable.
const StateUnknown = "unknown"

// State returns the entity state: the PM2.5 level, or StateUnknown.
func State(e AirQualityEntity) string {
	pm25 := e.ParticulateMatter25()
	if pm25 == nil {
		return StateUnknown
	}
	return strconv.FormatFloat(*pm25, 'f', -1, 64)
}

// StateAttributes renders the full attribute set for e. Levels that are not
// reported are omitted, extra attributes are merged last.
func StateAttributes(e AirQualityEntity) map[string]any {
	attrs := map[string]any{
		"attribution":         e.Attribution(),
		"friendly_name":       e.Name(),
		"icon":                e.Icon(),
		"unit_of_measurement": gios.ConcentrationUnit,
	}

	if index := e.AirQualityIndex(); index != nil {
		attrs[gios.AttrAirQualityIndex] = *index
	}

	levels := []struct {
		name  string
		value *float64
	}{
		{gios.AttrParticulateMatter2_5, e.ParticulateMatter25()},
		{gios.AttrParticulateMatter10, e.ParticulateMatter10()},
		{gios.AttrOzone, e.Ozone()},
		{gios.AttrCarbonMonoxide, e.CarbonMonoxide()},
		{gios.AttrSulphurDioxide, e.SulphurDioxide()},
		{gios.AttrNitrogenDioxide, e.NitrogenDioxide()},
	}
	for _, level := range levels {
		if level.value != nil {
			attrs[level.name] = *level.value
		}
	}

	for k, v := range e.ExtraStateAttributes() {
		attrs[k] = v
	}

	return attrs
}
