package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

const Logo = "🦆"

// Version is overridden at link time with -ldflags "-X .../cli.Version=...".
var Version = "0.1.0"

var (
	Accent = lipgloss.Color("#F5C518")
	Subtle = lipgloss.Color("#555555")
	Green  = lipgloss.Color("#04B575")
	Red    = lipgloss.Color("#FF4444")

	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(Accent)
	BoldStyle  = lipgloss.NewStyle().Bold(true)
	BotLabel   = lipgloss.NewStyle().Bold(true).Foreground(Accent)
	UserLabel  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#AAAAAA"))
	ErrStyle   = lipgloss.NewStyle().Foreground(Red)
	OkStyle    = lipgloss.NewStyle().Foreground(Green).Bold(true)
	DimStyle   = lipgloss.NewStyle().Foreground(Subtle)

	bannerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Accent).
			Padding(0, 2).
			MarginLeft(2)
)

func StatusBadge(ok bool) string {
	if ok {
		return OkStyle.Render("✓")
	}
	return DimStyle.Render("✗")
}

// RenderBanner returns the boxed product name and version.
func RenderBanner() string {
	return bannerStyle.Render(TitleStyle.Render(fmt.Sprintf("%s relaybot", Logo)) + DimStyle.Render(" v"+Version))
}
