// Package sensor defines the raw telemetry types shared by the ingestion,
// feature-engineering and serving layers.
package sensor

// Reading is a single raw measurement from a machine. Values are kept in the
// units the plant emits them in; unit conversion happens during feature
// engineering. A Reading is immutable once produced.
type Reading struct {
	// AirTempK is the ambient air temperature in Kelvin.
	AirTempK float64
	// ProcessTempK is the process temperature in Kelvin, when the source
	// provides it.
	ProcessTempK float64
	// RotationalSpeedRPM is the spindle speed in revolutions per minute.
	RotationalSpeedRPM float64
	// TorqueNm is the measured torque in newton-metres.
	TorqueNm float64
	// ToolWearMin is the accumulated tool wear in minutes.
	ToolWearMin float64
	// ProductType is the categorical product/tool quality variant (L/M/H in
	// the predictive-maintenance dataset). Empty when unknown.
	ProductType string
}
