package orchestrator

import (
	"fmt"

	"github.com/penlight/vitalsum/models"
)

const fallbackModel = "on-device-fallback"

// synthesizeEnrichment builds a stand-in enrichment purely from the
// local scores. The same local analysis always yields the same
// enrichment.
func synthesizeEnrichment(local models.LocalAnalysis) *models.AIResult {
	return &models.AIResult{
		Headline:          fallbackHeadline(local),
		EnergyComment:     fallbackEnergy(local),
		ActionSuggestions: fallbackSuggestions(local),
		DataQuality:       "local-estimate",
		Model:             fallbackModel,
	}
}

func fallbackHeadline(local models.LocalAnalysis) string {
	switch local.Band {
	case "Excellent":
		return fmt.Sprintf("Excellent day overall (%.0f/100).", local.CompositeScore)
	case "Good":
		return fmt.Sprintf("Solid day overall (%.0f/100).", local.CompositeScore)
	case "Fair":
		return fmt.Sprintf("A mixed day (%.0f/100).", local.CompositeScore)
	default:
		return fmt.Sprintf("A tough day (%.0f/100), take it easy.", local.CompositeScore)
	}
}

func fallbackEnergy(local models.LocalAnalysis) string {
	switch {
	case local.ActivityScore >= 80:
		return "Activity is well above target. Keep the momentum."
	case local.ActivityScore >= 50:
		return "Activity is on track. A short walk would top it up."
	default:
		return "Activity is low so far. Even light movement helps."
	}
}

// fallbackSuggestions targets the weakest component score.
func fallbackSuggestions(local models.LocalAnalysis) []string {
	lowest := "sleep"
	min := local.SleepScore
	if local.ActivityScore < min {
		lowest, min = "activity", local.ActivityScore
	}
	if local.RecoveryScore < min {
		lowest = "recovery"
	}
	switch lowest {
	case "activity":
		return []string{
			"Schedule a 20 minute walk before the evening.",
			"Break up long sitting stretches with short movement.",
		}
	case "recovery":
		return []string{
			"Keep intensity low today and prioritize rest.",
			"Wind down earlier tonight to help recovery.",
		}
	default:
		return []string{
			"Aim for an earlier bedtime tonight.",
			"Keep screens out of the last half hour before sleep.",
		}
	}
}
