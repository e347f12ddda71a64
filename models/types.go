package models

import (
	"time"
)

// SensorSnapshot represents one reading of the device sensor suite.
type SensorSnapshot struct {
	CapturedAt           time.Time `json:"captured_at"`
	SleepMinutes         int       `json:"sleep_minutes"`
	DeepSleepMinutes     int       `json:"deep_sleep_minutes"`
	Steps                int       `json:"steps"`
	ActiveMinutes        int       `json:"active_minutes"`
	RestingHeartRate     int       `json:"resting_heart_rate"`
	HeartRateVariability float64   `json:"heart_rate_variability"` // RMSSD in ms
}

// IsEmpty reports whether the snapshot carries no usable readings.
func (s SensorSnapshot) IsEmpty() bool {
	return s.SleepMinutes == 0 && s.Steps == 0 && s.ActiveMinutes == 0 &&
		s.RestingHeartRate == 0 && s.HeartRateVariability == 0
}

// HeartRateBucket rounds the resting heart rate to the nearest 5 bpm.
func (s SensorSnapshot) HeartRateBucket() int {
	return ((s.RestingHeartRate + 2) / 5) * 5
}

// SleepBucket rounds sleep duration down to 15-minute buckets.
func (s SensorSnapshot) SleepBucket() int {
	return (s.SleepMinutes / 15) * 15
}

// StepsBucket rounds step count down to 500-step buckets.
func (s SensorSnapshot) StepsBucket() int {
	return (s.Steps / 500) * 500
}

// ActiveBucket rounds active minutes down to 10-minute buckets.
func (s SensorSnapshot) ActiveBucket() int {
	return (s.ActiveMinutes / 10) * 10
}

// HRVBucket rounds heart rate variability to the nearest 5 ms.
func (s SensorSnapshot) HRVBucket() int {
	return int((s.HeartRateVariability+2.5)/5) * 5
}

// UserProfile contains the profile fields relevant to analysis.
type UserProfile struct {
	Age      int      `json:"age"`
	GoalTags []string `json:"goal_tags,omitempty"`
}

// AgeBucket rounds age down to 5-year buckets.
func (p UserProfile) AgeBucket() int {
	return (p.Age / 5) * 5
}

// EnvironmentSnapshot carries best-effort environmental context.
type EnvironmentSnapshot struct {
	TemperatureC float64 `json:"temperature_c"`
	Humidity     float64 `json:"humidity"`
	Condition    string  `json:"condition"`
}

// RequestCategory labels a class of analysis request with its own
// rate and budget limits.
type RequestCategory string

const (
	CategoryQuick         RequestCategory = "quick"
	CategoryDaily         RequestCategory = "daily"
	CategoryComprehensive RequestCategory = "comprehensive"
)

// Valid reports whether the category is one of the known classes.
func (c RequestCategory) Valid() bool {
	switch c {
	case CategoryQuick, CategoryDaily, CategoryComprehensive:
		return true
	}
	return false
}

// DefaultTTL returns how long an enhanced result for this category
// stays reusable.
func (c RequestCategory) DefaultTTL() time.Duration {
	switch c {
	case CategoryQuick:
		return 30 * time.Minute
	case CategoryComprehensive:
		return 6 * time.Hour
	default:
		return 2 * time.Hour
	}
}

// EstimatedCost returns the expected spend in USD for one remote
// analysis of this category, used for admission decisions before the
// actual cost is known.
func (c RequestCategory) EstimatedCost() float64 {
	switch c {
	case CategoryQuick:
		return 0.002
	case CategoryComprehensive:
		return 0.02
	default:
		return 0.008
	}
}

// AnalysisRequest is the value object an analysis run starts from.
type AnalysisRequest struct {
	Snapshot    SensorSnapshot       `json:"snapshot"`
	Profile     UserProfile          `json:"profile"`
	Environment *EnvironmentSnapshot `json:"environment,omitempty"`
	Category    RequestCategory      `json:"category"`
}

// LocalAnalysis is the output of the pure local scoring stage.
type LocalAnalysis struct {
	SleepScore     float64 `json:"sleep_score"`
	ActivityScore  float64 `json:"activity_score"`
	RecoveryScore  float64 `json:"recovery_score"`
	CompositeScore float64 `json:"composite_score"`
	Band           string  `json:"band"`
}

// AIResult is the remote enhancement produced by the AI provider, or
// a locally synthesized stand-in when the provider is unavailable.
type AIResult struct {
	Headline          string            `json:"headline"`
	EnergyComment     string            `json:"energy_comment"`
	TagInsights       map[string]string `json:"tag_insights,omitempty"`
	ActionSuggestions []string          `json:"action_suggestions,omitempty"`
	DataQuality       string            `json:"data_quality,omitempty"`
	Model             string            `json:"model,omitempty"`
	TokensUsed        int               `json:"tokens_used,omitempty"`
}

// ResultSource tags where an AnalysisResult came from.
type ResultSource string

const (
	SourceLocal       ResultSource = "local"
	SourceCached      ResultSource = "cached"
	SourceFreshRemote ResultSource = "fresh_remote"
	SourceDegraded    ResultSource = "degraded_fallback"
)

// AnalysisResult is the published outcome of an analysis run. The
// remote part is nil until the enhancement stage succeeds; once set it
// is never rolled back.
type AnalysisResult struct {
	Local          LocalAnalysis `json:"local"`
	Remote         *AIResult     `json:"remote,omitempty"`
	Source         ResultSource  `json:"source"`
	LimitingFactor string        `json:"limiting_factor,omitempty"`
	GeneratedAt    time.Time     `json:"generated_at"`
}

// RequestOutcome records whether a completed remote request succeeded.
type RequestOutcome string

const (
	OutcomeSuccess RequestOutcome = "success"
	OutcomeFailure RequestOutcome = "failure"
)

// RequestRecord is an immutable log entry for one completed remote
// request, kept for analytics.
type RequestRecord struct {
	ID        string          `json:"id"`
	Category  RequestCategory `json:"category"`
	Timestamp time.Time       `json:"timestamp"`
	Cost      float64         `json:"cost"`
	Latency   time.Duration   `json:"latency"`
	Outcome   RequestOutcome  `json:"outcome"`
}
