package morse

import (
	"errors"
	"fmt"
	"time"
)

// Timing holds the durations of every part of a transmission.
type Timing struct {
	// Dot is the active time of a Short symbol.
	Dot time.Duration `yaml:"dot"`
	// Dash is the active time of a Long symbol.
	Dash time.Duration `yaml:"dash"`
	// SymbolSpace is the inactive time after every symbol.
	SymbolSpace time.Duration `yaml:"symbol_space"`
	// LetterSpace is the extra inactive time between letters.
	LetterSpace time.Duration `yaml:"letter_space"`
	// WordSpace is the inactive time after the final letter.
	WordSpace time.Duration `yaml:"word_space"`
}

// PulseSpec is the on/off pair of a single symbol.
type PulseSpec struct {
	On  time.Duration
	Off time.Duration
}

// ErrInvalidTiming is returned when a timing value is not positive.
var ErrInvalidTiming = errors.New("timing values must be positive")

// DefaultTiming returns the standard timing: 200ms dot, 600ms dash, 200ms
// symbol space, 600ms letter space, 1400ms word space.
func DefaultTiming() Timing {
	return Timing{
		Dot:         200 * time.Millisecond,
		Dash:        600 * time.Millisecond,
		SymbolSpace: 200 * time.Millisecond,
		LetterSpace: 600 * time.Millisecond,
		WordSpace:   1400 * time.Millisecond,
	}
}

// Validate checks that every duration is positive.
func (t Timing) Validate() error {
	values := map[string]time.Duration{
		"dot":          t.Dot,
		"dash":         t.Dash,
		"symbol_space": t.SymbolSpace,
		"letter_space": t.LetterSpace,
		"word_space":   t.WordSpace,
	}

	for name, v := range values {
		if v <= 0 {
			return fmt.Errorf("%s=%s: %w", name, v, ErrInvalidTiming)
		}
	}

	return nil
}

// IsZero reports whether no value has been set.
func (t Timing) IsZero() bool {
	return t == Timing{}
}

// WithDefaults returns t with every unset duration taken from fallback.
func (t Timing) WithDefaults(fallback Timing) Timing {
	for _, field := range []struct {
		value    *time.Duration
		fallback time.Duration
	}{
		{&t.Dot, fallback.Dot},
		{&t.Dash, fallback.Dash},
		{&t.SymbolSpace, fallback.SymbolSpace},
		{&t.LetterSpace, fallback.LetterSpace},
		{&t.WordSpace, fallback.WordSpace},
	} {
		if *field.value == 0 {
			*field.value = field.fallback
		}
	}

	return t
}

// Pulse derives the on/off pair for a symbol.
func (t Timing) Pulse(s Symbol) PulseSpec {
	on := t.Dot
	if s == Long {
		on = t.Dash
	}

	return PulseSpec{On: on, Off: t.SymbolSpace}
}

// Total returns the wall-clock length of an emission of m.
func (t Timing) Total(m Message) time.Duration {
	var total time.Duration

	for i, l := range m {
		for _, s := range l {
			p := t.Pulse(s)
			total += p.On + p.Off
		}

		if i < len(m)-1 {
			total += t.LetterSpace
		} else {
			total += t.WordSpace
		}
	}

	return total
}
