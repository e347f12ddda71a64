package cmd

import (
	"fmt"
	"sort"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/penlight/vitalsum/config"
	"github.com/penlight/vitalsum/logging"
	"github.com/penlight/vitalsum/models"
	"github.com/penlight/vitalsum/ui"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch quota usage and cache statistics live",
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

		// Live-reload quota caps and cache tuning while the monitor
		// runs; edits to the config file apply without a restart.
		if path, ok := activeConfigFile(); ok {
			watcher, err := config.NewWatcher(path, application.applyConfig)
			if err != nil {
				logging.LogWarnf("config watching disabled: %v", err)
			} else if err := watcher.Start(); err != nil {
				logging.LogWarnf("config watching disabled: %v", err)
			} else {
				defer watcher.Stop()
			}
		}

		names := make([]string, 0, len(cfg.Quota.Categories))
		for name := range cfg.Quota.Categories {
			names = append(names, name)
		}
		sort.Strings(names)
		categories := make([]models.RequestCategory, 0, len(names))
		for _, name := range names {
			categories = append(categories, models.RequestCategory(name))
		}

		model := ui.New(ui.Deps{
			Limiter:    application.limiter,
			Cache:      application.cache,
			Categories: categories,
		}, ui.Config{
			RefreshRate: cfg.UI.RefreshRate,
			CompactMode: cfg.UI.CompactMode,
		})

		program := tea.NewProgram(model, tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return fmt.Errorf("monitor failed: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}
