package gios_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breatheroute/gios/internal/gios"
)

func TestSnapshot_Clone(t *testing.T) {
	original := gios.Snapshot{
		gios.SensorPM25: {Value: gios.Float(12.6), Index: gios.String(gios.IndexGood)},
		gios.SensorAQI:  {Index: gios.String(gios.IndexModerate)},
	}

	clone := original.Clone()
	*clone[gios.SensorPM25].Value = 40
	*clone[gios.SensorAQI].Index = gios.IndexPoor
	delete(clone, gios.SensorPM25)

	assert.Equal(t, 12.6, *original[gios.SensorPM25].Value)
	assert.Equal(t, gios.IndexModerate, *original[gios.SensorAQI].Index)
	assert.Nil(t, clone[gios.SensorAQI].Value)
}

func TestSnapshot_CloneNil(t *testing.T) {
	var s gios.Snapshot
	clone := s.Clone()
	require.NotNil(t, clone)
	assert.Empty(t, clone)
}

func TestData_Clone(t *testing.T) {
	var nilData *gios.Data
	assert.Nil(t, nilData.Clone())

	d := &gios.Data{
		StationID: 117,
		Sensors:   gios.Snapshot{gios.SensorNO2: {Value: gios.Float(9)}},
		FetchedAt: time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC),
	}
	clone := d.Clone()
	clone.StationID = 400
	*clone.Sensors[gios.SensorNO2].Value = 1

	assert.Equal(t, 117, d.StationID)
	assert.Equal(t, 9.0, *d.Sensors[gios.SensorNO2].Value)
	assert.Equal(t, d.FetchedAt, clone.FetchedAt)
}
