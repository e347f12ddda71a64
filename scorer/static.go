// Package scorer computes the local analysis stage: pure weighted
// arithmetic over a sensor snapshot, no I/O, fast enough to run
// synchronously on the caller's path.
package scorer

import (
	"fmt"
	"math"

	apperrors "github.com/penlight/vitalsum/errors"
	"github.com/penlight/vitalsum/models"
)

// Scorer produces a local analysis from sensor data.
type Scorer interface {
	ComputeStaticAnalysis(snapshot models.SensorSnapshot, profile models.UserProfile) (models.LocalAnalysis, error)
}

// Static is the default weighted scorer.
type Static struct{}

// NewStatic creates the default scorer.
func NewStatic() *Static {
	return &Static{}
}

// Reference values the component scores are normalized against.
const (
	targetSleepMinutes = 480.0
	targetDeepMinutes  = 90.0
	targetSteps        = 10000.0
	targetActiveMin    = 30.0
	baselineHRV        = 60.0
	baselineRestingHR  = 60.0
)

// ComputeStaticAnalysis scores sleep, activity, and recovery on a
// 0-100 scale and blends them into a composite band.
func (s *Static) ComputeStaticAnalysis(snapshot models.SensorSnapshot, profile models.UserProfile) (models.LocalAnalysis, error) {
	if snapshot.IsEmpty() {
		return models.LocalAnalysis{}, apperrors.NewScorerError(fmt.Errorf("snapshot carries no readings"))
	}

	sleep := sleepScore(snapshot)
	activity := activityScore(snapshot)
	recovery := recoveryScore(snapshot, profile)

	composite := 0.4*sleep + 0.3*activity + 0.3*recovery

	return models.LocalAnalysis{
		SleepScore:     round1(sleep),
		ActivityScore:  round1(activity),
		RecoveryScore:  round1(recovery),
		CompositeScore: round1(composite),
		Band:           band(composite),
	}, nil
}

func sleepScore(s models.SensorSnapshot) float64 {
	duration := clamp(float64(s.SleepMinutes) / targetSleepMinutes * 100)
	depth := clamp(float64(s.DeepSleepMinutes) / targetDeepMinutes * 100)
	if s.DeepSleepMinutes == 0 {
		return duration
	}
	return 0.7*duration + 0.3*depth
}

func activityScore(s models.SensorSnapshot) float64 {
	steps := clamp(float64(s.Steps) / targetSteps * 100)
	active := clamp(float64(s.ActiveMinutes) / targetActiveMin * 100)
	return 0.6*steps + 0.4*active
}

func recoveryScore(s models.SensorSnapshot, p models.UserProfile) float64 {
	// HRV declines with age; scale the baseline down 5 ms per decade
	// past 30 so older users are not penalized for normal physiology.
	expectedHRV := baselineHRV
	if p.Age > 30 {
		expectedHRV -= float64(p.Age-30) * 0.5
	}
	hrv := clamp(s.HeartRateVariability / expectedHRV * 100)

	hrPenalty := 0.0
	if s.RestingHeartRate > 0 {
		hrPenalty = math.Max(0, float64(s.RestingHeartRate)-baselineRestingHR) * 1.5
	}
	return clamp(hrv - hrPenalty)
}

func band(composite float64) string {
	switch {
	case composite >= 85:
		return "Excellent"
	case composite >= 70:
		return "Good"
	case composite >= 50:
		return "Fair"
	default:
		return "Poor"
	}
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
