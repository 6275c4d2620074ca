package ui

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/alfredjeanlab/kvcomments/internal/model"
)

// WriteComments prints one line per comment: id, time, then the content
// with newlines folded to spaces. When width is positive the content is
// cut to fit.
func WriteComments(w io.Writer, list []model.Comment, width int) {
	if len(list) == 0 {
		fmt.Fprintln(w, RenderMuted("no comments"))
		return
	}

	idWidth, timeWidth := 0, 0
	for _, c := range list {
		idWidth = max(idWidth, utf8.RuneCountInString(c.ID))
		timeWidth = max(timeWidth, utf8.RuneCountInString(c.Time.String()))
	}

	for _, c := range list {
		content := strings.Join(strings.Fields(c.Content), " ")
		if width > 0 {
			content = truncate(content, width-idWidth-timeWidth-4)
		}
		fmt.Fprintf(w, "%s  %s  %s\n",
			RenderAccent(pad(c.ID, idWidth)),
			RenderMuted(pad(c.Time.String(), timeWidth)),
			content,
		)
	}
}

// FormatComment renders a single comment for confirmations.
func FormatComment(c model.Comment) string {
	return fmt.Sprintf("%s %s %s", RenderAccent(c.ID), RenderMuted("["+c.Time.String()+"]"), c.Content)
}

func pad(s string, n int) string {
	if d := n - utf8.RuneCountInString(s); d > 0 {
		return s + strings.Repeat(" ", d)
	}
	return s
}

// truncate cuts s to n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}
