package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/penlight/vitalsum/cache"
	"github.com/penlight/vitalsum/models"
	"github.com/penlight/vitalsum/quota"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show quota usage and cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfiguration(cmd)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		application, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer application.close()

		if statusJSON {
			return printStatusJSON(application)
		}
		printStatusTables(application)
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print status as JSON")
	rootCmd.AddCommand(statusCmd)
}

type statusReport struct {
	Categories map[models.RequestCategory]quota.Status `json:"categories"`
	Cache      cache.Stats                             `json:"cache"`
}

func printStatusJSON(application *app) error {
	report := statusReport{
		Categories: make(map[models.RequestCategory]quota.Status),
		Cache:      application.cache.Stats(),
	}
	for category := range application.cfg.Quota.Categories {
		cat := models.RequestCategory(category)
		report.Categories[cat] = application.limiter.Status(cat)
	}

	data, err := sonic.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	fullStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func printStatusTables(application *app) {
	categories := make([]string, 0, len(application.cfg.Quota.Categories))
	for name := range application.cfg.Quota.Categories {
		categories = append(categories, name)
	}
	sort.Strings(categories)

	fmt.Println(headerStyle.Render("Quota"))
	for _, name := range categories {
		cat := models.RequestCategory(name)
		status := application.limiter.Status(cat)

		var cells []string
		for _, win := range status.Windows {
			cells = append(cells, renderWindow(win))
		}
		fmt.Printf("  %-14s %s\n", name, strings.Join(cells, "  "))
	}

	// Budget is shared across categories; any status carries it.
	if len(categories) > 0 {
		budget := application.limiter.Status(models.RequestCategory(categories[0])).Budget
		fmt.Println()
		fmt.Println(headerStyle.Render("Budget"))
		fmt.Printf("  $%.2f of $%.2f used, $%.2f remaining %s\n",
			budget.Used, budget.Total, budget.Remaining,
			dimStyle.Render("(resets "+budget.ResetAt.Format("Jan 2")+")"))
	}

	stats := application.cache.Stats()
	fmt.Println()
	fmt.Println(headerStyle.Render("Cache"))
	fmt.Printf("  %d/%d entries, %.0f%% hit rate %s\n",
		stats.Size, stats.MaxSize, stats.HitRate*100,
		dimStyle.Render(fmt.Sprintf("(%d hits, %d misses, %d evictions)", stats.Hits, stats.Misses, stats.Evictions)))
}

func renderWindow(win quota.WindowStatus) string {
	cell := fmt.Sprintf("%s %d", win.Kind, win.Count)
	if win.Limit > 0 {
		cell = fmt.Sprintf("%s %d/%d", win.Kind, win.Count, win.Limit)
		switch {
		case win.Count >= win.Limit:
			return fullStyle.Render(cell)
		case float64(win.Count) >= 0.8*float64(win.Limit):
			return warnStyle.Render(cell)
		}
	}
	return cell
}
