// Package ui holds the lipgloss palette shared by the TUI and CLI output.
package ui

import "github.com/charmbracelet/lipgloss"

// Palette. Adaptive colors keep text readable on light and dark terminals.
var (
	ColorAccent  = lipgloss.AdaptiveColor{Light: "#0B7285", Dark: "#3BC9DB"}
	ColorRecord  = lipgloss.AdaptiveColor{Light: "#C92A2A", Dark: "#FF6B6B"}
	ColorOK      = lipgloss.AdaptiveColor{Light: "#2B8A3E", Dark: "#69DB7C"}
	ColorWarn    = lipgloss.AdaptiveColor{Light: "#E67700", Dark: "#FFD43B"}
	ColorBusy    = lipgloss.AdaptiveColor{Light: "#862E9C", Dark: "#DA77F2"}
	ColorMuted   = lipgloss.AdaptiveColor{Light: "#868E96", Dark: "#868E96"}
	ColorFaint   = lipgloss.AdaptiveColor{Light: "#CED4DA", Dark: "#495057"}
	ColorHeading = lipgloss.AdaptiveColor{Light: "#212529", Dark: "#F8F9FA"}
)

// Header and status bar.
var (
	TitleStyle        = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	StatusStyle       = lipgloss.NewStyle().Foreground(ColorMuted)
	RecordingDotStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorRecord)
	WaitingDotStyle   = lipgloss.NewStyle().Bold(true).Foreground(ColorWarn)
	IdleDotStyle      = lipgloss.NewStyle().Foreground(ColorMuted)
	SpinnerStyle      = lipgloss.NewStyle().Foreground(ColorBusy)
	MicLabelStyle     = lipgloss.NewStyle().Foreground(ColorAccent)
)

// Level meter cells.
var (
	LevelGreenStyle  = lipgloss.NewStyle().Foreground(ColorOK)
	LevelYellowStyle = lipgloss.NewStyle().Foreground(ColorWarn)
	LevelGrayStyle   = lipgloss.NewStyle().Foreground(ColorFaint)
)

// Panels.
var (
	PanelTitleStyle       = lipgloss.NewStyle().Bold(true).Foreground(ColorHeading)
	PanelTitleActiveStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	SelectedStyle         = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	TimestampStyle        = lipgloss.NewStyle().Foreground(ColorMuted)
	DimStyle              = lipgloss.NewStyle().Foreground(ColorMuted)
	DividerStyle          = lipgloss.NewStyle().Foreground(ColorFaint)
	LiveBadgeStyle        = lipgloss.NewStyle().Bold(true).Foreground(ColorOK)
	ScrollBadgeStyle      = lipgloss.NewStyle().Bold(true).Foreground(ColorWarn)
)

// Messages and footer.
var (
	SuccessStyle    = lipgloss.NewStyle().Bold(true).Foreground(ColorOK)
	WarningStyle    = lipgloss.NewStyle().Bold(true).Foreground(ColorWarn)
	ErrorStyle      = lipgloss.NewStyle().Bold(true).Foreground(ColorRecord)
	ErrorTextStyle  = lipgloss.NewStyle().Foreground(ColorRecord)
	FooterKeyStyle  = lipgloss.NewStyle().Bold(true).Foreground(ColorWarn)
	FooterDescStyle = lipgloss.NewStyle().Foreground(ColorMuted)
)
