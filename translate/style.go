// Package translate rewrites text in a fun register through the
// funtranslations API behind a read-through cache.
package translate

import (
	"errors"
	"fmt"
)

// Style selects a funtranslations register.
type Style string

const (
	// Yoda is the register used for legendary and cave-dwelling species.
	Yoda Style = "yoda"
	// Shakespeare is the register used for every other species.
	Shakespeare Style = "shakespeare"
)

// ErrUnknownStyle indicates a style outside Yoda and Shakespeare.
var ErrUnknownStyle = errors.New("translate: unknown style")

// Valid reports whether s is a supported style.
func (s Style) Valid() bool {
	return s == Yoda || s == Shakespeare
}

func (s Style) String() string {
	return string(s)
}

// ParseStyle parses a style name.
func ParseStyle(name string) (Style, error) {
	s := Style(name)
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStyle, name)
	}
	return s, nil
}
