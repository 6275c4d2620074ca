package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Comment is a single guestbook entry stored inside the comment list.
type Comment struct {
	ID      string      `json:"id"`
	Content string      `json:"content"`
	Time    CommentTime `json:"time"`
}

// CommentTime holds a comment timestamp. Older writers stored a formatted
// display string, newer ones an epoch-millisecond integer; both are accepted
// and re-encoded in the form they were read.
type CommentTime struct {
	Display string
	Epoch   int64
	IsEpoch bool
}

// DisplayTime returns a CommentTime carrying a formatted string.
func DisplayTime(s string) CommentTime {
	return CommentTime{Display: s}
}

// EpochTime returns a CommentTime carrying Unix milliseconds.
func EpochTime(ms int64) CommentTime {
	return CommentTime{Epoch: ms, IsEpoch: true}
}

// IsZero reports whether no time was set.
func (t CommentTime) IsZero() bool {
	return !t.IsEpoch && t.Display == ""
}

// String renders the time for humans. Epoch values are shown in UTC.
func (t CommentTime) String() string {
	if t.IsEpoch {
		return time.UnixMilli(t.Epoch).UTC().Format("2006/01/02 15:04")
	}
	return t.Display
}

func (t CommentTime) MarshalJSON() ([]byte, error) {
	if t.IsEpoch {
		return []byte(strconv.FormatInt(t.Epoch, 10)), nil
	}
	return json.Marshal(t.Display)
}

func (t *CommentTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = CommentTime{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = DisplayTime(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("comment time must be a string or a number: %w", err)
	}
	ms, err := n.Int64()
	if err != nil {
		f, ferr := n.Float64()
		if ferr != nil {
			return fmt.Errorf("comment time %s: %w", n, err)
		}
		ms = int64(f)
	}
	*t = EpochTime(ms)
	return nil
}
