package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/bytedance/sonic"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/penlight/vitalsum/models"
)

var (
	runCategory string
	runInput    string
	runOffline  bool
	runJSON     bool
	runTimeout  time.Duration

	runSleep  int
	runDeep   int
	runSteps  int
	runActive int
	runHR     int
	runHRV    float64
	runAge    int
	runGoals  []string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one analysis and print the result",
	Long: `Run a single analysis over a sensor snapshot.

The snapshot is read from a JSON file given with --input, or assembled
from the individual flags. The local summary prints immediately; the
enhanced summary follows when the provider responds, or a degraded
fallback if it cannot.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfiguration(cmd)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if runOffline {
			cfg.Provider.Offline = true
		}

		req, err := buildRequest()
		if err != nil {
			return err
		}

		application, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer application.close()

		done := make(chan models.AnalysisResult, 1)
		application.orch.RegisterObserver(func(res models.AnalysisResult) {
			if res.Source == models.SourceLocal {
				printResult(res)
				return
			}
			select {
			case done <- res:
			default:
			}
		})

		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()

		if _, err := application.orch.Run(ctx, req); err != nil {
			return fmt.Errorf("analysis failed: %w", err)
		}

		select {
		case res := <-done:
			printResult(res)
		case <-time.After(runTimeout):
			fmt.Fprintln(os.Stderr, "timed out waiting for enhancement")
		}

		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&runCategory, "category", "c", "daily", "request category (quick, daily, comprehensive)")
	runCmd.Flags().StringVarP(&runInput, "input", "i", "", "read the analysis request from a JSON file")
	runCmd.Flags().BoolVar(&runOffline, "offline", false, "skip the AI provider entirely")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print results as JSON")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 30*time.Second, "how long to wait for the enhanced result")

	runCmd.Flags().IntVar(&runSleep, "sleep", 0, "total sleep in minutes")
	runCmd.Flags().IntVar(&runDeep, "deep-sleep", 0, "deep sleep in minutes")
	runCmd.Flags().IntVar(&runSteps, "steps", 0, "step count")
	runCmd.Flags().IntVar(&runActive, "active", 0, "active minutes")
	runCmd.Flags().IntVar(&runHR, "resting-hr", 0, "resting heart rate in bpm")
	runCmd.Flags().Float64Var(&runHRV, "hrv", 0, "heart rate variability in ms")
	runCmd.Flags().IntVar(&runAge, "age", 0, "user age in years")
	runCmd.Flags().StringSliceVar(&runGoals, "goal", nil, "goal tag (repeatable)")

	rootCmd.AddCommand(runCmd)
}

// buildRequest assembles the analysis request from --input or the
// individual flags.
func buildRequest() (models.AnalysisRequest, error) {
	category := models.RequestCategory(runCategory)
	if !category.Valid() {
		return models.AnalysisRequest{}, fmt.Errorf("unknown category: %s", runCategory)
	}

	if runInput != "" {
		data, err := os.ReadFile(runInput)
		if err != nil {
			return models.AnalysisRequest{}, fmt.Errorf("failed to read input file: %w", err)
		}
		var req models.AnalysisRequest
		if err := sonic.Unmarshal(data, &req); err != nil {
			return models.AnalysisRequest{}, fmt.Errorf("failed to parse input file: %w", err)
		}
		if req.Category == "" {
			req.Category = category
		}
		return req, nil
	}

	return models.AnalysisRequest{
		Snapshot: models.SensorSnapshot{
			SleepMinutes:         runSleep,
			DeepSleepMinutes:     runDeep,
			Steps:                runSteps,
			ActiveMinutes:        runActive,
			RestingHeartRate:     runHR,
			HeartRateVariability: runHRV,
		},
		Profile: models.UserProfile{
			Age:      runAge,
			GoalTags: runGoals,
		},
		Category: category,
	}, nil
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Width(12)
	bandStyles = map[string]lipgloss.Style{
		"Excellent": lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10")),
		"Good":      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10")),
		"Fair":      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11")),
		"Poor":      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
	}
)

func printResult(res models.AnalysisResult) {
	if runJSON {
		data, err := sonic.MarshalIndent(res, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to encode result: %v\n", err)
			return
		}
		fmt.Println(string(data))
		return
	}

	bandStyle, ok := bandStyles[res.Local.Band]
	if !ok {
		bandStyle = lipgloss.NewStyle().Bold(true)
	}

	fmt.Println(titleStyle.Render(fmt.Sprintf("Summary (%s)", res.Source)))
	fmt.Printf("%s %.0f/100 %s\n", labelStyle.Render("Composite"), res.Local.CompositeScore, bandStyle.Render(res.Local.Band))
	fmt.Printf("%s %.0f\n", labelStyle.Render("Sleep"), res.Local.SleepScore)
	fmt.Printf("%s %.0f\n", labelStyle.Render("Activity"), res.Local.ActivityScore)
	fmt.Printf("%s %.0f\n", labelStyle.Render("Recovery"), res.Local.RecoveryScore)

	if res.LimitingFactor != "" {
		fmt.Printf("%s %s\n", labelStyle.Render("Limited by"), res.LimitingFactor)
	}

	if res.Remote != nil {
		fmt.Println()
		fmt.Println(titleStyle.Render(res.Remote.Headline))
		if res.Remote.EnergyComment != "" {
			fmt.Println(res.Remote.EnergyComment)
		}
		for _, suggestion := range res.Remote.ActionSuggestions {
			fmt.Printf("  - %s\n", suggestion)
		}
		if res.Remote.Model != "" {
			fmt.Printf("%s %s\n", labelStyle.Render("Model"), res.Remote.Model)
		}
	}
	fmt.Println()
}
