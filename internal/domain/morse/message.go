package morse

import (
	"errors"
	"fmt"
	"strings"
)

// Symbol is a single Morse primitive.
type Symbol uint8

const (
	// Short is a dot.
	Short Symbol = iota + 1
	// Long is a dash.
	Long
)

// String renders the symbol the way Morse is usually written.
func (s Symbol) String() string {
	switch s {
	case Short:
		return "."
	case Long:
		return "-"
	default:
		return "?"
	}
}

// Letter is an ordered group of symbols for one character.
type Letter []Symbol

// Message is an ordered sequence of letters.
type Message []Letter

var (
	// ErrEmptyMessage is returned for a message without letters or with an empty letter.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrInvalidSymbol is returned when a pattern contains something other than '.' or '-'.
	ErrInvalidSymbol = errors.New("invalid morse symbol")
)

// S returns the letter S (three dots).
func S() Letter {
	return Letter{Short, Short, Short}
}

// O returns the letter O (three dashes).
func O() Letter {
	return Letter{Long, Long, Long}
}

// SOS returns the distress message. A fresh slice is built on every call.
func SOS() Message {
	return Message{S(), O(), S()}
}

// ParseLetter builds a letter from a dot/dash pattern such as "...".
func ParseLetter(pattern string) (Letter, error) {
	if pattern == "" {
		return nil, ErrEmptyMessage
	}

	letter := make(Letter, 0, len(pattern))

	for i, r := range pattern {
		switch r {
		case '.':
			letter = append(letter, Short)
		case '-':
			letter = append(letter, Long)
		default:
			return nil, fmt.Errorf("rune %q at %d: %w", r, i, ErrInvalidSymbol)
		}
	}

	return letter, nil
}

// String renders the letter as dots and dashes.
func (l Letter) String() string {
	var b strings.Builder

	for _, s := range l {
		b.WriteString(s.String())
	}

	return b.String()
}

// Pattern renders the message with letters separated by spaces, e.g. "... --- ...".
func (m Message) Pattern() string {
	letters := make([]string, 0, len(m))
	for _, l := range m {
		letters = append(letters, l.String())
	}

	return strings.Join(letters, " ")
}

// Validate reports ErrEmptyMessage when the message cannot be emitted.
func (m Message) Validate() error {
	if len(m) == 0 {
		return ErrEmptyMessage
	}

	for i, l := range m {
		if len(l) == 0 {
			return fmt.Errorf("letter %d: %w", i, ErrEmptyMessage)
		}

		for _, s := range l {
			if s != Short && s != Long {
				return fmt.Errorf("letter %d: %w", i, ErrInvalidSymbol)
			}
		}
	}

	return nil
}
