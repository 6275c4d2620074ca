package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alfredjeanlab/kvcomments/internal/model"
)

// Event topic constants
const (
	TopicCommentAdded   = "comments.comment.added"
	TopicCommentDeleted = "comments.comment.deleted"

	// TopicAll matches every comment event.
	TopicAll = "comments.>"
)

// Event types

type CommentAdded struct {
	Namespace string         `json:"namespace,omitempty"`
	Comment   *model.Comment `json:"comment"`
}

type CommentDeleted struct {
	Namespace string `json:"namespace,omitempty"`
	ID        string `json:"id"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

// Describe renders a received payload as a one-line summary for humans.
func Describe(topic string, data []byte) (string, error) {
	switch topic {
	case TopicCommentAdded:
		var ev CommentAdded
		if err := json.Unmarshal(data, &ev); err != nil {
			return "", fmt.Errorf("decoding %s: %w", topic, err)
		}
		if ev.Comment == nil {
			return "added (empty)", nil
		}
		return fmt.Sprintf("added %s [%s] %s", ev.Comment.ID, ev.Comment.Time, ev.Comment.Content), nil
	case TopicCommentDeleted:
		var ev CommentDeleted
		if err := json.Unmarshal(data, &ev); err != nil {
			return "", fmt.Errorf("decoding %s: %w", topic, err)
		}
		return "deleted " + ev.ID, nil
	default:
		return fmt.Sprintf("%s %s", topic, data), nil
	}
}
