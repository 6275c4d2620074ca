package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// Label identifies the exported list in the JSONL header.
type Label struct {
	Namespace string
	Key       string
}

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version      string `json:"version"`
	Type         string `json:"type"`
	Namespace    string `json:"namespace"`
	Key          string `json:"key"`
	CommentCount int    `json:"comment_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ExportJSONL writes the comment list as JSONL to w: a header line followed
// by one record per comment in stored order. The output depends only on the
// list, so an unchanged list exports identical bytes.
func ExportJSONL(ctx context.Context, src Source, label Label, w io.Writer) error {
	list, err := src.FetchList(ctx)
	if err != nil {
		return fmt.Errorf("fetch comment list: %w", err)
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:      "1",
		Type:         "header",
		Namespace:    label.Namespace,
		Key:          label.Key,
		CommentCount: len(list),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, c := range list {
		if err := enc.Encode(record{Type: "comment", Data: c}); err != nil {
			return fmt.Errorf("encode comment %s: %w", c.ID, err)
		}
	}

	return nil
}
