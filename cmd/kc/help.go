package main

import (
	"bytes"
	"fmt"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/kvcomments/internal/ui"
)

// helpRule styles every match of re; style receives the submatches.
type helpRule struct {
	re    *regexp.Regexp
	style func(m []string) string
}

// helpRules are applied in order to Cobra's plain help text.
var helpRules = []helpRule{
	// Section headers such as "Comments:" or "Flags:".
	{regexp.MustCompile(`(?m)^([A-Z][^\n]*:)[ \t]*$`), func(m []string) string {
		return ui.RenderAccent(m[1])
	}},
	// Command names: two-space indent, a word, two or more spaces.
	{regexp.MustCompile(`(?m)^(  )(\S+)(  )`), func(m []string) string {
		return m[1] + ui.RenderCommand(m[2]) + m[3]
	}},
	// Flag types, e.g. "--url string", "--limit int".
	{regexp.MustCompile(`(--?\S+\s+)(string|int|duration)`), func(m []string) string {
		return m[1] + ui.RenderMuted(m[2])
	}},
	// Defaults, e.g. (default "http://localhost:8080").
	{regexp.MustCompile(`\(default "[^"]*"\)`), func(m []string) string {
		return ui.RenderMuted(m[0])
	}},
}

// colorizedHelpFunc returns a Cobra help function that colors the default
// help text when stdout supports it.
func colorizedHelpFunc() func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		if !ui.ShouldUseColor() {
			_ = cmd.Usage()
			return
		}

		var buf bytes.Buffer
		cmd.SetOut(&buf)
		_ = cmd.Usage()
		cmd.SetOut(out)
		fmt.Fprint(out, colorizeHelpOutput(buf.String()))
	}
}

func colorizeHelpOutput(s string) string {
	for _, rule := range helpRules {
		s = rule.re.ReplaceAllStringFunc(s, func(match string) string {
			return rule.style(rule.re.FindStringSubmatch(match))
		})
	}
	return s
}
