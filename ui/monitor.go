// Package ui provides the interactive Bubble Tea quota monitor.
package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/penlight/vitalsum/cache"
	"github.com/penlight/vitalsum/models"
	"github.com/penlight/vitalsum/quota"
)

// TickMsg drives the periodic refresh.
type TickMsg time.Time

// Deps are the data sources the monitor reads from.
type Deps struct {
	Limiter    *quota.Limiter
	Cache      *cache.ResultCache
	Categories []models.RequestCategory
}

// Config tunes the monitor.
type Config struct {
	RefreshRate time.Duration
	CompactMode bool
}

// Model is the root Bubble Tea model for the quota monitor.
type Model struct {
	deps Deps
	cfg  Config

	width  int
	height int

	statuses    map[models.RequestCategory]quota.Status
	cacheStats  cache.Stats
	lastRefresh time.Time

	quitting bool
}

// New creates a monitor model.
func New(deps Deps, cfg Config) Model {
	if cfg.RefreshRate <= 0 {
		cfg.RefreshRate = time.Second
	}
	return Model{
		deps:     deps,
		cfg:      cfg,
		statuses: make(map[models.RequestCategory]quota.Status),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.refresh(), m.tick())
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			return m, m.refresh()
		}
		return m, nil

	case TickMsg:
		return m, tea.Batch(m.refresh(), m.tick())

	case refreshedMsg:
		m.statuses = msg.statuses
		m.cacheStats = msg.cacheStats
		m.lastRefresh = msg.at
		return m, nil
	}

	return m, nil
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.cfg.RefreshRate, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

type refreshedMsg struct {
	statuses   map[models.RequestCategory]quota.Status
	cacheStats cache.Stats
	at         time.Time
}

func (m Model) refresh() tea.Cmd {
	return func() tea.Msg {
		statuses := make(map[models.RequestCategory]quota.Status, len(m.deps.Categories))
		for _, category := range m.deps.Categories {
			statuses[category] = m.deps.Limiter.Status(category)
		}
		return refreshedMsg{
			statuses:   statuses,
			cacheStats: m.deps.Cache.Stats(),
			at:         time.Now(),
		}
	}
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if len(m.statuses) == 0 {
		return "\n  loading...\n"
	}

	var sections []string
	sections = append(sections, titleStyle.Render("vitalsum quota monitor"))

	for _, category := range m.deps.Categories {
		status, ok := m.statuses[category]
		if !ok {
			continue
		}
		sections = append(sections, m.renderCategory(category, status))
	}

	if budget, ok := m.firstBudget(); ok {
		sections = append(sections, m.renderBudget(budget))
	}

	sections = append(sections, m.renderCache())
	sections = append(sections, helpStyle.Render("r refresh · q quit"))

	return lipgloss.JoinVertical(lipgloss.Left, sections...) + "\n"
}

func (m Model) renderCategory(category models.RequestCategory, status quota.Status) string {
	lines := []string{categoryStyle.Render(string(category))}

	for _, win := range status.Windows {
		if win.Limit <= 0 {
			if m.cfg.CompactMode {
				continue
			}
			lines = append(lines, fmt.Sprintf("  %-8s %d (unlimited)", win.Kind, win.Count))
			continue
		}
		pct := float64(win.Count) / float64(win.Limit)
		lines = append(lines, fmt.Sprintf("  %-8s %s %d/%d %s",
			win.Kind,
			usageBar(pct, m.barWidth()),
			win.Count, win.Limit,
			dimStyle.Render("resets "+formatCountdown(time.Until(win.ResetAt)))))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) renderBudget(budget quota.BudgetStatus) string {
	if budget.Total <= 0 {
		return categoryStyle.Render("budget") + "\n  unlimited"
	}
	pct := budget.Used / budget.Total
	line := fmt.Sprintf("  %-8s %s $%.2f/$%.2f %s",
		"month",
		usageBar(pct, m.barWidth()),
		budget.Used, budget.Total,
		dimStyle.Render("resets "+budget.ResetAt.Format("Jan 2")))
	return lipgloss.JoinVertical(lipgloss.Left, categoryStyle.Render("budget"), line)
}

func (m Model) renderCache() string {
	line := fmt.Sprintf("  %d/%d entries · %.0f%% hit rate · %d evictions",
		m.cacheStats.Size, m.cacheStats.MaxSize, m.cacheStats.HitRate*100, m.cacheStats.Evictions)
	return lipgloss.JoinVertical(lipgloss.Left, categoryStyle.Render("cache"), line)
}

func (m Model) firstBudget() (quota.BudgetStatus, bool) {
	for _, category := range m.deps.Categories {
		if status, ok := m.statuses[category]; ok {
			return status.Budget, true
		}
	}
	return quota.BudgetStatus{}, false
}

func (m Model) barWidth() int {
	width := m.width - 40
	if width < 10 {
		width = 10
	}
	if width > 40 {
		width = 40
	}
	return width
}

// usageBar renders a stateless progress bar colored by how close the
// window is to its limit.
func usageBar(pct float64, width int) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 1 {
		pct = 1
	}
	bar := progress.New(
		progress.WithSolidFill(colorForPct(pct)),
		progress.WithWidth(width),
		progress.WithoutPercentage(),
	)
	return bar.ViewAs(pct)
}

func colorForPct(pct float64) string {
	switch {
	case pct >= 1:
		return "9"
	case pct >= 0.8:
		return "11"
	default:
		return "10"
	}
}

func formatCountdown(d time.Duration) string {
	if d <= 0 {
		return "now"
	}
	switch {
	case d >= 24*time.Hour:
		return fmt.Sprintf("%dd%dh", int(d.Hours())/24, int(d.Hours())%24)
	case d >= time.Hour:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	default:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	}
}
