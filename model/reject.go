package model

// RejectReason classifies why a sample was excluded from accumulation.
// Rejections are counted per reason and never abort a pass.
type RejectReason string

const (
	// RejectInvalidSample marks a sample whose validity flag was false.
	RejectInvalidSample RejectReason = "invalid_sample"
	// RejectInvalidPointing marks NaN or out-of-domain pointing angles.
	RejectInvalidPointing RejectReason = "invalid_pointing"
	// RejectOutOfWindow marks a calibration tag outside the configured
	// frequency/energy window.
	RejectOutOfWindow RejectReason = "out_of_window"
	// RejectCalibrationMissing marks a tag absent from the calibration
	// table. Distinct from RejectOutOfWindow for diagnostics.
	RejectCalibrationMissing RejectReason = "calibration_missing"
	// RejectOutOfField marks a pointing that resolves outside the
	// configured pixel grid.
	RejectOutOfField RejectReason = "out_of_field"
	// RejectUnitMismatch marks a background subtraction attempted in
	// units different from the sample's current units.
	RejectUnitMismatch RejectReason = "unit_mismatch"
)

// Reasons lists every reject reason, in a stable order, for statistics
// reporting and metric label initialization.
func Reasons() []RejectReason {
	return []RejectReason{
		RejectInvalidSample,
		RejectInvalidPointing,
		RejectOutOfWindow,
		RejectCalibrationMissing,
		RejectOutOfField,
		RejectUnitMismatch,
	}
}
