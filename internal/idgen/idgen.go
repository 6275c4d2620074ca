// Package idgen generates comment IDs. Three styles are supported: the
// millisecond timestamp used by the original guestbook, short nanoid IDs and
// random UUIDs.
package idgen

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	nanoid "github.com/matoous/go-nanoid/v2"
)

// Style selects how IDs are generated.
type Style string

const (
	StyleTimestamp Style = "timestamp"
	StyleNanoid    Style = "nanoid"
	StyleUUID      Style = "uuid"
)

// Valid reports whether s is a known style.
func (s Style) Valid() bool {
	switch s {
	case StyleTimestamp, StyleNanoid, StyleUUID:
		return true
	}
	return false
}

// DefaultPrefix is prepended to every nanoid ID.
var DefaultPrefix = "c-"

// Alphabet defines the character set used for the random portion of the ID.
var Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of random characters generated (excluding the prefix).
var Length = 10

// Generate returns a new unique ID using the default prefix.
func Generate() (string, error) {
	return GenerateWithPrefix(DefaultPrefix)
}

// GenerateWithPrefix returns a new unique ID with the given prefix.
func GenerateWithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}

// Timestamp returns now as decimal Unix milliseconds. If taken reports the
// candidate as already used, the value is bumped by one millisecond until free.
func Timestamp(now time.Time, taken func(string) bool) string {
	ms := now.UnixMilli()
	for {
		id := strconv.FormatInt(ms, 10)
		if taken == nil || !taken(id) {
			return id
		}
		ms++
	}
}

// New returns an ID in the given style. taken is consulted for every style;
// random styles regenerate on the (unlikely) collision.
func New(style Style, now time.Time, taken func(string) bool) (string, error) {
	switch style {
	case StyleTimestamp, "":
		return Timestamp(now, taken), nil
	case StyleNanoid, StyleUUID:
		for {
			var id string
			if style == StyleUUID {
				id = uuid.NewString()
			} else {
				var err error
				if id, err = Generate(); err != nil {
					return "", err
				}
			}
			if taken == nil || !taken(id) {
				return id, nil
			}
		}
	default:
		return "", fmt.Errorf("idgen: unknown style %q", style)
	}
}
