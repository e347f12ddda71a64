// Package provider implements the client for the remote AI analysis
// service.
package provider

import (
	"context"
	"net/http"
	"time"

	"github.com/bytedance/sonic"

	"github.com/penlight/vitalsum/models"
	"github.com/penlight/vitalsum/netclient"
)

// Result is one completed remote analysis together with its actual
// cost and latency, which the caller records against quota.
type Result struct {
	AI      models.AIResult
	Cost    float64
	Latency time.Duration
}

// Caller is the consumed interface of the AI provider.
type Caller interface {
	Analyze(ctx context.Context, req AnalysisRequest) (*Result, error)
}

// AnalysisRequest is the JSON body sent to the provider.
type AnalysisRequest struct {
	Biological    BiologicalContext     `json:"biological"`
	Environmental *EnvironmentalContext `json:"environmental,omitempty"`
	User          UserContext           `json:"user"`
	Category      string                `json:"category"`
}

// BiologicalContext carries the sensor readings and local scores.
type BiologicalContext struct {
	SleepMinutes         int     `json:"sleep_minutes"`
	DeepSleepMinutes     int     `json:"deep_sleep_minutes"`
	Steps                int     `json:"steps"`
	ActiveMinutes        int     `json:"active_minutes"`
	RestingHeartRate     int     `json:"resting_heart_rate"`
	HeartRateVariability float64 `json:"heart_rate_variability"`
	SleepScore           float64 `json:"sleep_score"`
	ActivityScore        float64 `json:"activity_score"`
	RecoveryScore        float64 `json:"recovery_score"`
}

// EnvironmentalContext carries the optional weather context.
type EnvironmentalContext struct {
	TemperatureC float64 `json:"temperature_c"`
	Humidity     float64 `json:"humidity"`
	Condition    string  `json:"condition"`
}

// UserContext carries profile fields the provider may personalize on.
type UserContext struct {
	Age      int      `json:"age"`
	GoalTags []string `json:"goal_tags,omitempty"`
}

// analysisResponse is the provider's JSON response.
type analysisResponse struct {
	Headline          string            `json:"headline"`
	EnergyComment     string            `json:"energy_comment"`
	TagInsights       map[string]string `json:"tag_insights"`
	ActionSuggestions []string          `json:"action_suggestions"`
	DataQuality       string            `json:"data_quality"`
	Model             string            `json:"model"`
	TokensUsed        int               `json:"tokens_used"`
	CostUSD           float64           `json:"cost_usd"`
}

// Client calls the AI provider over HTTP through the resilient client.
type Client struct {
	baseURL string
	apiKey  string
	http    *netclient.Client
	now     func() time.Time
}

// NewClient creates a provider client.
func NewClient(baseURL, apiKey string, httpClient *netclient.Client) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    httpClient,
		now:     time.Now,
	}
}

// Analyze posts the request and decodes the enhanced analysis. Errors
// follow the resilient client's classification; they surface only
// after retries are exhausted or a terminal error occurs.
func (c *Client) Analyze(ctx context.Context, req AnalysisRequest) (*Result, error) {
	body, err := sonic.Marshal(req)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := c.now()
	resp, err := c.http.Execute(ctx, &netclient.Request{
		Method: http.MethodPost,
		URL:    c.baseURL + "/v1/analyze",
		Header: header,
		Body:   body,
	})
	latency := c.now().Sub(start)
	if err != nil {
		return nil, err
	}

	var decoded analysisResponse
	if err := netclient.DecodeJSON(resp, &decoded); err != nil {
		return nil, err
	}

	return &Result{
		AI: models.AIResult{
			Headline:          decoded.Headline,
			EnergyComment:     decoded.EnergyComment,
			TagInsights:       decoded.TagInsights,
			ActionSuggestions: decoded.ActionSuggestions,
			DataQuality:       decoded.DataQuality,
			Model:             decoded.Model,
			TokensUsed:        decoded.TokensUsed,
		},
		Cost:    decoded.CostUSD,
		Latency: latency,
	}, nil
}
