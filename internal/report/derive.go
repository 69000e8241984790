package report

// Condition is the wheel-wear label derived from the measured diameter.
type Condition string

const (
	ConditionGood    Condition = "GOOD"
	ConditionBad     Condition = "BAD"
	ConditionUnknown Condition = "UNKNOWN"
)

// Surface status labels, matching the backend's status field.
const (
	StatusFlawDetected = "FLAW DETECTED"
	StatusNoFlaw       = "NO FLAW"
)

// Recommendation texts, in precedence order.
const (
	RecommendFlawsAndWear = "For Repair/Replacement (Flaws and Wheel Wear)"
	RecommendSurfaceFlaws = "For Repair/Replacement (Surface Flaws)"
	RecommendExcessWear   = "For Wheel Replacement (Excessive Wear)"
	RecommendMonitoring   = "For Consistent Monitoring"
)

// DefaultGoodDiameterMm is the smallest diameter still considered in good condition.
const DefaultGoodDiameterMm = 631.0

// Thresholds holds the business constants used by derivation.
type Thresholds struct {
	GoodDiameterMm float64
}

// DefaultThresholds returns the production thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{GoodDiameterMm: DefaultGoodDiameterMm}
}

// Derived holds the display fields computed from one report. It is never stored
// independently of its source report.
type Derived struct {
	SurfaceStatus  string
	Condition      Condition
	Recommendation string
}

// NeedsAttention reports whether the wheel is flawed or worn.
func (d Derived) NeedsAttention() bool {
	return d.SurfaceStatus == StatusFlawDetected || d.Condition == ConditionBad
}

// Derive computes the display fields for r.
func Derive(r InspectionReport, th Thresholds) Derived {
	cond := DeriveCondition(r.WheelDiameterMm, th)
	return Derived{
		SurfaceStatus:  SurfaceStatus(r.SurfaceFlawed),
		Condition:      cond,
		Recommendation: DeriveRecommendation(r.SurfaceFlawed, cond),
	}
}

// DeriveCondition maps a diameter to a condition label. A nil diameter is UNKNOWN.
func DeriveCondition(diameterMm *float64, th Thresholds) Condition {
	if diameterMm == nil {
		return ConditionUnknown
	}
	if *diameterMm >= th.GoodDiameterMm {
		return ConditionGood
	}
	return ConditionBad
}

// DeriveRecommendation returns the recommendation text for the given flaw result and condition.
func DeriveRecommendation(flawed bool, cond Condition) string {
	bad := cond == ConditionBad
	switch {
	case flawed && bad:
		return RecommendFlawsAndWear
	case flawed:
		return RecommendSurfaceFlaws
	case bad:
		return RecommendExcessWear
	default:
		return RecommendMonitoring
	}
}

// SurfaceStatus returns the display label for a surface flaw result.
func SurfaceStatus(flawed bool) string {
	if flawed {
		return StatusFlawDetected
	}
	return StatusNoFlaw
}
