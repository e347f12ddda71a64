package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/penlight/vitalsum/errors"
	"github.com/penlight/vitalsum/netclient"
)

func testRequest() AnalysisRequest {
	return AnalysisRequest{
		Biological: BiologicalContext{
			SleepMinutes:     445,
			Steps:            8200,
			RestingHeartRate: 58,
			SleepScore:       88,
		},
		User:     UserContext{Age: 37},
		Category: "daily",
	}
}

func TestClientAnalyze(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/analyze", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req AnalysisRequest
		require.NoError(t, sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "daily", req.Category)
		assert.Equal(t, 445, req.Biological.SleepMinutes)

		_, _ = w.Write([]byte(`{
			"headline": "Well recovered",
			"energy_comment": "Strong morning ahead",
			"tag_insights": {"endurance": "good base day"},
			"action_suggestions": ["zone 2 ride"],
			"data_quality": "complete",
			"model": "insight-2",
			"tokens_used": 412,
			"cost_usd": 0.012
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", netclient.New(netclient.Config{
		Timeout:     time.Second,
		MaxAttempts: 1,
	}))

	result, err := client.Analyze(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "Well recovered", result.AI.Headline)
	assert.Equal(t, "insight-2", result.AI.Model)
	assert.Equal(t, 412, result.AI.TokensUsed)
	assert.InDelta(t, 0.012, result.Cost, 1e-9)
}

func TestClientAnalyzeMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"headline": `))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", netclient.New(netclient.Config{MaxAttempts: 1}))

	_, err := client.Analyze(context.Background(), testRequest())
	require.Error(t, err)

	var ae *apperrors.AnalysisError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apperrors.TypeDecode, ae.Type)
}

func TestClientAnalyzeServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "try later", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", netclient.New(netclient.Config{
		MaxAttempts: 2,
		BaseBackoff: time.Millisecond,
	}))

	_, err := client.Analyze(context.Background(), testRequest())
	require.Error(t, err)
	assert.True(t, apperrors.IsRetryable(err))
}
