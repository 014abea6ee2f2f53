package telemetry

import (
	"fmt"
	"maps"
	"slices"
)

// MetricID identifies one displayable value. A single notification can carry several
// (Indoor Bike Data has speed, cadence, power and more).
type MetricID string

const (
	MetricHeartRate            MetricID = "heart_rate"
	MetricRRInterval           MetricID = "rr_interval"
	MetricInstantaneousPower   MetricID = "instantaneous_power"
	MetricAveragePower         MetricID = "average_power"
	MetricPedalBalance         MetricID = "pedal_balance"
	MetricInstantaneousSpeed   MetricID = "instantaneous_speed"
	MetricAverageSpeed         MetricID = "average_speed"
	MetricInstantaneousCadence MetricID = "instantaneous_cadence"
	MetricAverageCadence       MetricID = "average_cadence"
	MetricTotalDistance        MetricID = "total_distance"
	MetricResistanceLevel      MetricID = "resistance_level"
	MetricTotalEnergy          MetricID = "total_energy"
	MetricEnergyPerHour        MetricID = "energy_per_hour"
	MetricEnergyPerMinute      MetricID = "energy_per_minute"
	MetricMetabolicEquivalent  MetricID = "metabolic_equivalent"
	MetricElapsedTime          MetricID = "elapsed_time"
	MetricRemainingTime        MetricID = "remaining_time"
	MetricTargetPower          MetricID = "target_power"
	MetricTargetResistance     MetricID = "target_resistance"
	MetricTargetGrade          MetricID = "target_grade"
	MetricActualResistance     MetricID = "actual_resistance"
)

// MetricInfo describes how a metric is shown.
type MetricInfo struct {
	ID          MetricID
	DisplayName string
	Unit        string
	FormatStr   string // Printf verb for the value
}

var AllMetrics = map[MetricID]MetricInfo{
	MetricHeartRate:            {MetricHeartRate, "Heart Rate", "bpm", "%.0f"},
	MetricRRInterval:           {MetricRRInterval, "RR Interval", "ms", "%.0f"},
	MetricInstantaneousPower:   {MetricInstantaneousPower, "Power", "W", "%.0f"},
	MetricAveragePower:         {MetricAveragePower, "Avg Power", "W", "%.0f"},
	MetricPedalBalance:         {MetricPedalBalance, "Balance", "%", "%.1f"},
	MetricInstantaneousSpeed:   {MetricInstantaneousSpeed, "Speed", "km/h", "%.1f"},
	MetricAverageSpeed:         {MetricAverageSpeed, "Avg Speed", "km/h", "%.1f"},
	MetricInstantaneousCadence: {MetricInstantaneousCadence, "Cadence", "rpm", "%.0f"},
	MetricAverageCadence:       {MetricAverageCadence, "Avg Cadence", "rpm", "%.0f"},
	MetricTotalDistance:        {MetricTotalDistance, "Distance", "m", "%.0f"},
	MetricResistanceLevel:      {MetricResistanceLevel, "Resistance", "", "%.0f"},
	MetricTotalEnergy:          {MetricTotalEnergy, "Energy", "kJ", "%.0f"},
	MetricEnergyPerHour:        {MetricEnergyPerHour, "Energy/hr", "kJ/h", "%.0f"},
	MetricEnergyPerMinute:      {MetricEnergyPerMinute, "Energy/min", "kJ/min", "%.0f"},
	MetricMetabolicEquivalent:  {MetricMetabolicEquivalent, "MET", "", "%.1f"},
	MetricElapsedTime:          {MetricElapsedTime, "Elapsed", "s", "%.0f"},
	MetricRemainingTime:        {MetricRemainingTime, "Remaining", "s", "%.0f"},
	MetricTargetPower:          {MetricTargetPower, "Target Power", "W", "%.0f"},
	MetricTargetResistance:     {MetricTargetResistance, "Target Resistance", "", "%.1f"},
	MetricTargetGrade:          {MetricTargetGrade, "Grade", "%", "%.1f"},
	MetricActualResistance:     {MetricActualResistance, "Unit Resistance", "", "%.0f"},
}

func GetMetricInfo(id MetricID) (MetricInfo, bool) {
	info, ok := AllMetrics[id]
	return info, ok
}

// Format renders value with the metric's verb and unit.
func Format(id MetricID, value float64) string {
	info, ok := AllMetrics[id]
	if !ok {
		return fmt.Sprintf("%g", value)
	}
	s := fmt.Sprintf(info.FormatStr, value)
	if info.Unit != "" {
		s += " " + info.Unit
	}
	return s
}

// Metrics maps metric IDs to values.
type Metrics map[MetricID]float64

// IDs returns the keys in sorted order.
func (m Metrics) IDs() []MetricID {
	return slices.Sorted(maps.Keys(m))
}
