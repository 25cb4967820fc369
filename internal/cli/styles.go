// Package cli provides styled terminal output and input helpers for the till
// command.
package cli

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

var (
	// PrimaryColor is the main theme color.
	PrimaryColor = lipgloss.Color("#2E86AB")
	// SuccessColor indicates successful operations.
	SuccessColor = lipgloss.Color("#3BB273") // Green
	// WarningColor indicates warnings or caution messages.
	WarningColor = lipgloss.Color("#F6AE2D") // Amber
	// ErrorColor indicates errors or failure messages.
	ErrorColor = lipgloss.Color("#E15554") // Red
	// InfoColor indicates informational messages.
	InfoColor = lipgloss.Color("#7BC8F6") // Light blue
	// SubtleColor indicates less prominent UI elements.
	SubtleColor = lipgloss.Color("#666666") // Gray

	// TitleStyle is used for section titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor).
			MarginBottom(1)

	// SuccessStyle formats success messages.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(SuccessColor)

	// WarningStyle formats warning messages.
	WarningStyle = lipgloss.NewStyle().
			Foreground(WarningColor)

	// ErrorStyle formats error messages.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor)

	// InfoStyle formats informational messages.
	InfoStyle = lipgloss.NewStyle().
			Foreground(InfoColor)

	// SubtleStyle formats less prominent text.
	SubtleStyle = lipgloss.NewStyle().
			Foreground(SubtleColor)

	// BoldStyle makes text bold.
	BoldStyle = lipgloss.NewStyle().
			Bold(true)

	// BoxStyle is used for bordered summaries.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(PrimaryColor).
			Padding(0, 2)

	// IncomeStyle colors money coming in.
	IncomeStyle = lipgloss.NewStyle().
			Foreground(SuccessColor)

	// SpendStyle colors money going out.
	SpendStyle = lipgloss.NewStyle().
			Foreground(ErrorColor)

	// PromptStyle is used for user prompts.
	PromptStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor)
)

// Icons.
const (
	SuccessIcon = "✓"
	ErrorIcon   = "✗"
	WarningIcon = "⚠️"
	InfoIcon    = "ℹ️"
	ReceiptIcon = "🧾"
	ChartIcon   = "📊"
	KeyIcon     = "🔑"
)

// FormatSuccess formats a success message with icon.
func FormatSuccess(message string) string {
	return SuccessStyle.Render(SuccessIcon + " " + message)
}

// FormatError formats an error message with icon.
func FormatError(message string) string {
	return ErrorStyle.Render(ErrorIcon + " " + message)
}

// FormatWarning formats a warning message with icon.
func FormatWarning(message string) string {
	return WarningStyle.Render(WarningIcon + " " + message)
}

// FormatInfo formats an info message with icon.
func FormatInfo(message string) string {
	return InfoStyle.Render(InfoIcon + " " + message)
}

// FormatTitle formats a section title.
func FormatTitle(icon, title string) string {
	if icon == "" {
		return TitleStyle.Render(title)
	}
	return TitleStyle.Render(icon + " " + title)
}

// FormatPrompt formats a prompt message.
func FormatPrompt(prompt string) string {
	return PromptStyle.Render(prompt + ": ")
}

// FormatMoney renders an amount with two decimals, colored by direction.
func FormatMoney(amount decimal.Decimal, income bool) string {
	if income {
		return IncomeStyle.Render(amount.StringFixed(2))
	}
	return SpendStyle.Render(amount.StringFixed(2))
}

// RenderBox renders content in a styled box under a title.
func RenderBox(title, content string) string {
	boxTitle := TitleStyle.
		UnsetMargins().
		Render(title)

	return BoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, boxTitle, content))
}
