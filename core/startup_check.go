package core

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// CheckStatus is the outcome of one startup check.
type CheckStatus int

const (
	CheckPassed CheckStatus = iota
	CheckWarning
	CheckFailed
)

// CheckResult describes one line of the startup report.
type CheckResult struct {
	Name    string
	Status  CheckStatus
	Message string
}

// CheckConfig inspects which optional features are usable with cfg.
// Hard failures were already rejected by Validate; this only reports.
func CheckConfig(cfg *Config, envPath string) []CheckResult {
	var results []CheckResult

	if _, err := os.Stat(envPath); err != nil {
		results = append(results, CheckResult{"Environment file", CheckWarning, ErrEnvFileMissing(envPath).Error()})
	} else {
		results = append(results, CheckResult{"Environment file", CheckPassed, envPath})
	}

	results = append(results, CheckResult{"Image synthesis", CheckPassed, cfg.ImageProvider})

	if cfg.DescriptionEnabled() {
		results = append(results, CheckResult{"Image-to-image", CheckPassed, cfg.VisionModel})
	} else {
		results = append(results, CheckResult{"Image-to-image", CheckWarning, ErrMissingAuth("gemini").Error()})
	}

	if cfg.ChatEnabled() {
		results = append(results, CheckResult{"Chat", CheckPassed, cfg.ChatModel})
	} else {
		results = append(results, CheckResult{"Chat", CheckWarning, ErrMissingAuth("groq").Error()})
	}

	if cfg.RetryMaxAttempts > 1 || cfg.PipelineConfigPath != "" {
		results = append(results, CheckResult{"Retry policy", CheckPassed, "enabled"})
	} else {
		results = append(results, CheckResult{"Retry policy", CheckPassed, "single attempt per stage"})
	}

	return results
}

// PrintCheckResults writes a colored summary of the startup checks.
func PrintCheckResults(w io.Writer, results []CheckResult) {
	header := color.New(color.FgCyan, color.Bold)
	header.Fprintf(w, "━━━ aichat %s ━━━\n", Version)

	for _, r := range results {
		var icon string
		var clr *color.Color
		switch r.Status {
		case CheckPassed:
			icon, clr = "✓", color.New(color.FgGreen)
		case CheckWarning:
			icon, clr = "!", color.New(color.FgYellow)
		default:
			icon, clr = "✗", color.New(color.FgRed)
		}
		clr.Fprintf(w, "  %s %s", icon, r.Name)
		if r.Message != "" {
			color.New(color.FgHiBlack).Fprintf(w, " - %s", r.Message)
		}
		fmt.Fprintln(w)
	}
}
