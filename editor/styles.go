package editor

import (
	"slices"
	"strings"

	lipgloss "github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/nulifyer/nuglyph/logger"
)

type Theme struct {
	Border lipgloss.TerminalColor
	Muted  lipgloss.TerminalColor
	Text   lipgloss.TerminalColor
	Subtle lipgloss.TerminalColor
	Accent lipgloss.TerminalColor
	Green  lipgloss.TerminalColor
	Yellow lipgloss.TerminalColor
	Red    lipgloss.TerminalColor
	Cyan   lipgloss.TerminalColor
}

var themes = map[string]Theme{
	"auto": {
		Border: lipgloss.AdaptiveColor{Dark: "#30363d", Light: "#d0d7de"},
		Muted:  lipgloss.AdaptiveColor{Dark: "#484f58", Light: "#8c959f"},
		Text:   lipgloss.AdaptiveColor{Dark: "#e6edf3", Light: "#1f2328"},
		Subtle: lipgloss.AdaptiveColor{Dark: "#8b949e", Light: "#656d76"},
		Accent: lipgloss.AdaptiveColor{Dark: "#58a6ff", Light: "#0969da"},
		Green:  lipgloss.AdaptiveColor{Dark: "#3fb950", Light: "#1a7f37"},
		Yellow: lipgloss.AdaptiveColor{Dark: "#d29922", Light: "#9a6700"},
		Red:    lipgloss.AdaptiveColor{Dark: "#f85149", Light: "#cf222e"},
		Cyan:   lipgloss.AdaptiveColor{Dark: "#56d7c2", Light: "#0d7680"},
	},
	"dracula": {
		Border: lipgloss.Color("#44475a"),
		Muted:  lipgloss.Color("#6272a4"),
		Text:   lipgloss.Color("#f8f8f2"),
		Subtle: lipgloss.Color("#6272a4"),
		Accent: lipgloss.Color("#bd93f9"),
		Green:  lipgloss.Color("#50fa7b"),
		Yellow: lipgloss.Color("#f1fa8c"),
		Red:    lipgloss.Color("#ff5555"),
		Cyan:   lipgloss.Color("#8be9fd"),
	},
	"nord": {
		Border: lipgloss.Color("#3b4252"),
		Muted:  lipgloss.Color("#4c566a"),
		Text:   lipgloss.Color("#eceff4"),
		Subtle: lipgloss.Color("#d8dee9"),
		Accent: lipgloss.Color("#88c0d0"),
		Green:  lipgloss.Color("#a3be8c"),
		Yellow: lipgloss.Color("#ebcb8b"),
		Red:    lipgloss.Color("#bf616a"),
		Cyan:   lipgloss.Color("#8fbcbb"),
	},
	"gruvbox": {
		Border: lipgloss.Color("#665c54"),
		Muted:  lipgloss.Color("#a89984"),
		Text:   lipgloss.Color("#ebdbb2"),
		Subtle: lipgloss.Color("#bdae93"),
		Accent: lipgloss.Color("#83a598"),
		Green:  lipgloss.Color("#b8bb26"),
		Yellow: lipgloss.Color("#fabd2f"),
		Red:    lipgloss.Color("#fb4934"),
		Cyan:   lipgloss.Color("#8ec07c"),
	},
	"catppuccin-latte": {
		Border: lipgloss.Color("#ccd0da"),
		Muted:  lipgloss.Color("#9ca0b0"),
		Text:   lipgloss.Color("#4c4f69"),
		Subtle: lipgloss.Color("#6c6f85"),
		Accent: lipgloss.Color("#1e66f5"),
		Green:  lipgloss.Color("#40a02b"),
		Yellow: lipgloss.Color("#df8e1d"),
		Red:    lipgloss.Color("#d20f39"),
		Cyan:   lipgloss.Color("#179299"),
	},
}

// ThemeNames lists the accepted --theme values, sorted.
func ThemeNames() []string {
	names := make([]string, 0, len(themes))
	for n := range themes {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

var (
	styleMuted      lipgloss.Style
	styleSubtle     lipgloss.Style
	styleText       lipgloss.Style
	styleTextBold   lipgloss.Style
	styleAccent     lipgloss.Style
	styleAccentBold lipgloss.Style
	styleGreen      lipgloss.Style
	styleYellow     lipgloss.Style
	styleRed        lipgloss.Style
	styleBorder     lipgloss.Style
	styleCursorLine lipgloss.Style

	styleHeaderBar lipgloss.Style
	styleFooterBar lipgloss.Style
	styleOverlay   lipgloss.Style
	stylePanel     lipgloss.Style
)

func init() { applyTheme(themes["auto"]) }

func applyTheme(t Theme) {
	styleMuted = lipgloss.NewStyle().Foreground(t.Muted)
	styleSubtle = lipgloss.NewStyle().Foreground(t.Subtle)
	styleText = lipgloss.NewStyle().Foreground(t.Text)
	styleTextBold = styleText.Bold(true)
	styleAccent = lipgloss.NewStyle().Foreground(t.Accent)
	styleAccentBold = styleAccent.Bold(true)
	styleGreen = lipgloss.NewStyle().Foreground(t.Green)
	styleYellow = lipgloss.NewStyle().Foreground(t.Yellow)
	styleRed = lipgloss.NewStyle().Foreground(t.Red)
	styleBorder = lipgloss.NewStyle().Foreground(t.Border)
	styleCursorLine = lipgloss.NewStyle().Foreground(t.Text).Background(t.Border)

	styleHeaderBar = lipgloss.NewStyle().BorderBottom(true).BorderStyle(lipgloss.NormalBorder()).BorderBottomForeground(t.Border)
	styleFooterBar = lipgloss.NewStyle().BorderTop(true).BorderStyle(lipgloss.NormalBorder()).BorderTopForeground(t.Border).Padding(0, 1)
	styleOverlay = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(t.Accent).Padding(1, 2)
	stylePanel = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(t.Border).Padding(0, 1)

	logger.SetPalette(logger.Palette{Trace: t.Muted, Debug: t.Cyan, Info: t.Green, Warn: t.Yellow, Error: t.Red})
}

// InitTheme applies the named theme. If noColor is true, all colour output
// is disabled. Unknown names fall back to "auto".
func InitTheme(name string, noColor bool) {
	if noColor {
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}
	t, ok := themes[strings.ToLower(name)]
	if !ok {
		logger.Warn("Unknown theme %q, falling back to \"auto\"", name)
		t = themes["auto"]
	}
	applyTheme(t)
}
