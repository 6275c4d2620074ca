package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"

	"github.com/alfredjeanlab/kvcomments/internal/comments"
	"github.com/alfredjeanlab/kvcomments/internal/events"
	"github.com/alfredjeanlab/kvcomments/internal/model"
)

// commentInput is the JSON body accepted by append. "value" is the field
// name older front ends used.
type commentInput struct {
	Content *string            `json:"content"`
	Value   *string            `json:"value"`
	Time    *model.CommentTime `json:"time"`
	ID      string             `json:"id"`
	Key     string             `json:"key"`
}

var epochPattern = regexp.MustCompile(`^\d{10,}$`)

// handleList handles GET base and ?action=get.
func (s *CommentServer) handleList(w http.ResponseWriter, r *http.Request, rt route) {
	list, err := s.comments.FetchList(r.Context())
	if err != nil {
		s.writeAdapterError(w, r, rt.op, err)
		return
	}
	if s.metrics != nil {
		s.metrics.ListLength(len(list))
	}
	writeJSON(w, http.StatusOK, envelope{Code: http.StatusOK, Msg: "ok", Data: list})
}

// handleAppend handles POST base and ?action=set.
func (s *CommentServer) handleAppend(w http.ResponseWriter, r *http.Request, rt route) {
	in, err := s.readInput(w, r)
	if err != nil {
		s.writeAdapterError(w, r, rt.op, err)
		return
	}

	nc := comments.NewComment{Time: in.Time}
	q := r.URL.Query()
	switch {
	case in.Content != nil:
		nc.Content = *in.Content
	case in.Value != nil:
		nc.Content = *in.Value
	case q.Has("content"):
		nc.Content = q.Get("content")
	default:
		nc.Content = q.Get("value")
	}
	if nc.Time == nil && q.Get("time") != "" {
		t := parseQueryTime(q.Get("time"))
		nc.Time = &t
	}

	c, err := s.comments.Append(r.Context(), nc)
	if err != nil {
		s.writeAdapterError(w, r, rt.op, err)
		return
	}

	s.publish(r.Context(), events.TopicCommentAdded, events.CommentAdded{Namespace: s.opts.Namespace, Comment: &c})
	writeJSON(w, http.StatusOK, envelope{Code: http.StatusOK, Msg: "ok", Comment: &c})
}

// handleDelete handles DELETE base/{id} and ?action=delete. An id that
// matches no comment is a 404.
func (s *CommentServer) handleDelete(w http.ResponseWriter, r *http.Request, rt route) {
	id := rt.pathID
	if id == "" {
		q := r.URL.Query()
		id = q.Get("id")
		if id == "" {
			id = q.Get("key")
		}
	}
	if id == "" {
		in, err := s.readInput(w, r)
		if err != nil {
			s.writeAdapterError(w, r, rt.op, err)
			return
		}
		id = in.ID
		if id == "" {
			id = in.Key
		}
	}
	if id == "" {
		s.writeAdapterError(w, r, rt.op, inputError("id is required"))
		return
	}

	removed, err := s.comments.Delete(r.Context(), id)
	if err != nil {
		s.writeAdapterError(w, r, rt.op, err)
		return
	}
	if !removed {
		s.writeAdapterError(w, r, rt.op, fmt.Errorf("%w: %s", comments.ErrCommentNotFound, id))
		return
	}

	s.publish(r.Context(), events.TopicCommentDeleted, events.CommentDeleted{Namespace: s.opts.Namespace, ID: id})
	writeJSON(w, http.StatusOK, envelope{Code: http.StatusOK, Msg: "ok"})
}

// handleProbeGet handles ?action=kvGet&key=...
func (s *CommentServer) handleProbeGet(w http.ResponseWriter, r *http.Request, _ route) {
	key := r.URL.Query().Get("key")
	if key == "" {
		writeText(w, http.StatusBadRequest, "key is required\n")
		return
	}
	value, found, err := s.comments.Raw(r.Context(), key)
	if err != nil {
		s.logger.Error("kv probe failed", "operation", "get", "key", key, "error", err)
		writeText(w, http.StatusInternalServerError, "get %s failed: %v\n", key, err)
		return
	}
	if !found {
		writeText(w, http.StatusNotFound, "key %s not found\n", key)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(value)
}

// handleProbeSet handles ?action=kvSet&key=...&value=... (or the value as body).
func (s *CommentServer) handleProbeSet(w http.ResponseWriter, r *http.Request, _ route) {
	q := r.URL.Query()
	key := q.Get("key")
	if key == "" {
		writeText(w, http.StatusBadRequest, "key is required\n")
		return
	}
	value := []byte(q.Get("value"))
	if !q.Has("value") {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
		if err != nil {
			writeText(w, statusFor(err), "reading body: %v\n", err)
			return
		}
		value = body
	}
	if err := s.comments.PutRaw(r.Context(), key, value); err != nil {
		s.logger.Error("kv probe failed", "operation", "set", "key", key, "error", err)
		writeText(w, http.StatusInternalServerError, "set %s failed: %v\n", key, err)
		return
	}
	writeText(w, http.StatusOK, "set %s (%d bytes)\n", key, len(value))
}

// handleProbeDelete handles ?action=kvDelete&key=...
func (s *CommentServer) handleProbeDelete(w http.ResponseWriter, r *http.Request, _ route) {
	key := r.URL.Query().Get("key")
	if key == "" {
		writeText(w, http.StatusBadRequest, "key is required\n")
		return
	}
	existed, err := s.comments.DeleteRaw(r.Context(), key)
	if err != nil {
		s.logger.Error("kv probe failed", "operation", "delete", "key", key, "error", err)
		writeText(w, http.StatusInternalServerError, "delete %s failed: %v\n", key, err)
		return
	}
	if !existed {
		writeText(w, http.StatusNotFound, "key %s not found\n", key)
		return
	}
	writeText(w, http.StatusOK, "deleted %s\n", key)
}

// readInput decodes an optional JSON body. An empty body yields a zero input.
// A body over MaxBodyBytes is a content validation error.
func (s *CommentServer) readInput(w http.ResponseWriter, r *http.Request) (commentInput, error) {
	var in commentInput
	if r.Body == nil {
		return in, nil
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return in, model.NewValidationError("content",
				fmt.Sprintf("request body must be %d bytes or fewer", mbe.Limit))
		}
		return in, fmt.Errorf("reading body: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return in, nil
	}
	if err := json.Unmarshal(body, &in); err != nil {
		return in, inputError("invalid JSON body")
	}
	return in, nil
}

// parseQueryTime treats an all-digit value as epoch milliseconds and anything
// else as a display string.
func parseQueryTime(v string) model.CommentTime {
	if epochPattern.MatchString(v) {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			return model.EpochTime(ms)
		}
	}
	return model.DisplayTime(v)
}
