package ui

import "github.com/charmbracelet/lipgloss"

var (
	ColorAccent = lipgloss.AdaptiveColor{Light: "#005f87", Dark: "#5fafff"}
	ColorPass   = lipgloss.AdaptiveColor{Light: "#00875f", Dark: "#5fd787"}
	ColorWarn   = lipgloss.AdaptiveColor{Light: "#af5f00", Dark: "#ffaf5f"}
	ColorMuted  = lipgloss.AdaptiveColor{Light: "#6c6c6c", Dark: "#8a8a8a"}
)

var (
	promptStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	passStyle   = lipgloss.NewStyle().Foreground(ColorPass)
	warnStyle   = lipgloss.NewStyle().Foreground(ColorWarn)
	mutedStyle  = lipgloss.NewStyle().Foreground(ColorMuted)
	bannerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorAccent).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorMuted).
			Padding(0, 1)
)

func styled(s lipgloss.Style, text string) string {
	if !ShouldUseColor() {
		return text
	}
	return s.Render(text)
}

// RenderPrompt styles the REPL prompt
func RenderPrompt(text string) string { return styled(promptStyle, text) }

// RenderPass styles a success message
func RenderPass(text string) string { return styled(passStyle, text) }

// RenderWarn styles a warning
func RenderWarn(text string) string { return styled(warnStyle, text) }

// RenderMuted styles secondary text
func RenderMuted(text string) string { return styled(mutedStyle, text) }

// Banner renders a boxed title with an optional subtitle line
func Banner(title, subtitle string) string {
	text := title
	if subtitle != "" {
		text += "\n" + subtitle
	}
	if !ShouldUseColor() {
		return text
	}
	return bannerStyle.Render(text)
}
