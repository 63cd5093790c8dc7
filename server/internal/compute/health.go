package compute

// Status constants returned by the classifiers.
const (
	StatusHealthy = "healthy"
	StatusWarning = "warning"
	StatusError   = "error"
	StatusUnknown = "unknown"
	StatusNoData  = "no-data"
)

// Color tags paired with each status for presentation layers.
const (
	ColorGreen  = "green"
	ColorYellow = "yellow"
	ColorRed    = "red"
	ColorGray   = "gray"
)

// Thresholds for ClassifyHealth.
const (
	// MinSamples is the volume below which a service's health is not judged.
	MinSamples = 100

	// ErrorRateThreshold is the error rate (%) at or above which a service
	// with enough samples is in error.
	ErrorRateThreshold = 1.0
)

// Thresholds for ClassifyTiered.
const (
	TieredErrorThreshold   = 15.0
	TieredWarningThreshold = 5.0
)

// Health is a status label and its color tag.
type Health struct {
	Status   string `json:"status"`
	ColorTag string `json:"color_tag"`
}

// ClassifyHealth judges a service from its error rate (%) and sample volume.
//
// Rules, in order:
//
//	total < MinSamples                 → unknown (even at 100% errors)
//	errorRate >= ErrorRateThreshold    → error
//	otherwise                          → healthy
func ClassifyHealth(errorRate float64, total int64) Health {
	switch {
	case total < MinSamples:
		return healthOf(StatusUnknown)
	case errorRate >= ErrorRateThreshold:
		return healthOf(StatusError)
	default:
		return healthOf(StatusHealthy)
	}
}

// ClassifyTiered judges a single bucket, which is usually far below
// MinSamples, so it has no sample floor beyond distinguishing empty buckets.
//
//	total == 0                          → no-data
//	errorRate >= TieredErrorThreshold   → error
//	errorRate >= TieredWarningThreshold → warning
//	otherwise                           → healthy
func ClassifyTiered(errorRate float64, total int64) Health {
	switch {
	case total <= 0:
		return healthOf(StatusNoData)
	case errorRate >= TieredErrorThreshold:
		return healthOf(StatusError)
	case errorRate >= TieredWarningThreshold:
		return healthOf(StatusWarning)
	default:
		return healthOf(StatusHealthy)
	}
}

// ColorFor returns the color tag for a status label.
func ColorFor(status string) string {
	switch status {
	case StatusHealthy:
		return ColorGreen
	case StatusWarning:
		return ColorYellow
	case StatusError:
		return ColorRed
	default:
		return ColorGray
	}
}

func healthOf(status string) Health {
	return Health{Status: status, ColorTag: ColorFor(status)}
}
