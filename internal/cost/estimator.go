// Package cost provides display-only deposit cost estimates. The
// estimate is advisory: the on-chain program is the source of truth for
// what a deposit actually costs, and the pipeline never reconciles the
// two.
package cost

// DefaultRatePerGBMonth is the fallback storage rate in SOL per
// gigabyte-month, used when the service does not supply one.
const DefaultRatePerGBMonth = 0.05

const (
	bytesPerGB      = 1 << 30
	secondsPerDay   = 86400
	daysPerMonth    = 30
	secondsPerMonth = secondsPerDay * daysPerMonth
)

// Estimator converts deposit parameters into an approximate SOL cost.
type Estimator struct {
	ratePerGBMonth float64
}

// NewEstimator creates an estimator with the given SOL per
// gigabyte-month rate. Non-positive rates fall back to the default.
func NewEstimator(ratePerGBMonth float64) *Estimator {
	if ratePerGBMonth <= 0 {
		ratePerGBMonth = DefaultRatePerGBMonth
	}
	return &Estimator{ratePerGBMonth: ratePerGBMonth}
}

// Estimate returns the approximate cost in SOL of storing sizeBytes for
// durationSeconds. Zero size or duration estimates to zero.
func (e *Estimator) Estimate(sizeBytes int64, durationSeconds int64) float64 {
	if sizeBytes <= 0 || durationSeconds <= 0 {
		return 0
	}
	gb := float64(sizeBytes) / float64(bytesPerGB)
	months := float64(durationSeconds) / float64(secondsPerMonth)
	return gb * months * e.ratePerGBMonth
}
