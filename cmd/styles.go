package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorDim    = lipgloss.AdaptiveColor{Light: "242", Dark: "240"}
	colorGreen  = lipgloss.AdaptiveColor{Light: "28", Dark: "40"}
	colorRed    = lipgloss.AdaptiveColor{Light: "160", Dark: "196"}
	colorYellow = lipgloss.AdaptiveColor{Light: "136", Dark: "220"}
	colorCyan   = lipgloss.AdaptiveColor{Light: "30", Dark: "45"}
)

var (
	styleLabel   = lipgloss.NewStyle().Foreground(colorDim)
	styleSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleWarning = lipgloss.NewStyle().Bold(true).Foreground(colorYellow)
	styleError   = lipgloss.NewStyle().Bold(true).Foreground(colorRed)
	styleHint    = lipgloss.NewStyle().Foreground(colorDim)
	styleName    = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
)

// Project status badges.
var (
	badgeMonitoring = lipgloss.NewStyle().Foreground(colorGreen)
	badgeStopped    = lipgloss.NewStyle().Foreground(colorDim)
	badgeSilent     = lipgloss.NewStyle().Foreground(colorYellow)
)

// PrintError writes err to stderr in the error style.
func PrintError(err error) {
	fmt.Fprintln(os.Stderr, styleError.Render("Error:"), err)
}

func printWarnings(warnings []string) {
	for _, w := range warnings {
		fmt.Println(styleWarning.Render("warning:"), w)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
