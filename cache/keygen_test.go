package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/penlight/vitalsum/models"
)

func keyRequest(hr int, steps int) models.AnalysisRequest {
	return models.AnalysisRequest{
		Snapshot: models.SensorSnapshot{
			CapturedAt:           time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC),
			SleepMinutes:         445,
			Steps:                steps,
			ActiveMinutes:        42,
			RestingHeartRate:     hr,
			HeartRateVariability: 48,
		},
		Profile:  models.UserProfile{Age: 37, GoalTags: []string{"endurance"}},
		Category: models.CategoryDaily,
	}
}

func TestKeygenStable(t *testing.T) {
	g := NewKeyGenerator("analysis")

	k1 := g.Generate(keyRequest(62, 8200))
	k2 := g.Generate(keyRequest(62, 8200))
	assert.Equal(t, k1, k2)
	assert.Contains(t, k1, "analysis:")

	// Known digest pins the key format across releases.
	assert.Len(t, k1, len("analysis:")+64)
}

func TestKeygenBucketsEquivalentRequests(t *testing.T) {
	g := NewKeyGenerator("")

	// 61 and 62 bpm round to the same 5 bpm bucket; 8200 and 8400 steps
	// share the same 500-step bucket.
	assert.Equal(t, g.Generate(keyRequest(61, 8200)), g.Generate(keyRequest(62, 8400)))

	// Crossing a bucket boundary changes the key.
	assert.NotEqual(t, g.Generate(keyRequest(62, 8200)), g.Generate(keyRequest(70, 8200)))
}

func TestKeygenCategorySeparatesKeys(t *testing.T) {
	g := NewKeyGenerator("")

	quick := keyRequest(62, 8200)
	quick.Category = models.CategoryQuick
	daily := keyRequest(62, 8200)
	daily.Category = models.CategoryDaily

	assert.NotEqual(t, g.Generate(quick), g.Generate(daily))
}

func TestKeygenIgnoresEnvironment(t *testing.T) {
	g := NewKeyGenerator("")

	withEnv := keyRequest(62, 8200)
	withEnv.Environment = &models.EnvironmentSnapshot{TemperatureC: 21, Condition: "clear"}

	assert.Equal(t, g.Generate(keyRequest(62, 8200)), g.Generate(withEnv))
}
