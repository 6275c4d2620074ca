package main

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"

	"github.com/alfredjeanlab/kvcomments/internal/model"
)

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

var epochFlag = regexp.MustCompile(`^\d{10,}$`)

// parseTimeFlag reads --time: ten or more digits are epoch milliseconds,
// anything else is kept as a display string.
func parseTimeFlag(v string) *model.CommentTime {
	if v == "" {
		return nil
	}
	if epochFlag.MatchString(v) {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			t := model.EpochTime(ms)
			return &t
		}
	}
	t := model.DisplayTime(v)
	return &t
}
