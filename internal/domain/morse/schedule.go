package morse

import "time"

// Level is the logical state of the output line in a schedule.
type Level bool

const (
	// Inactive is the resting state.
	Inactive Level = false
	// Active drives the actuator.
	Active Level = true
)

// Step holds the line at Level for Duration.
type Step struct {
	Level    Level
	Duration time.Duration
}

// Schedule expands m into the ordered steps an emission performs.
// Gaps that follow a symbol's off time are emitted as separate inactive steps.
func Schedule(m Message, t Timing) ([]Step, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	steps := make([]Step, 0, len(m)*8)

	for i, l := range m {
		for _, s := range l {
			p := t.Pulse(s)
			steps = append(steps,
				Step{Level: Active, Duration: p.On},
				Step{Level: Inactive, Duration: p.Off},
			)
		}

		gap := t.WordSpace
		if i < len(m)-1 {
			gap = t.LetterSpace
		}

		steps = append(steps, Step{Level: Inactive, Duration: gap})
	}

	return steps, nil
}

// Duration sums the durations of steps.
func Duration(steps []Step) time.Duration {
	var total time.Duration
	for _, s := range steps {
		total += s.Duration
	}

	return total
}

// LevelAt returns the line level elapsed after the start of steps.
// The line is inactive before the start and once the schedule is over.
func LevelAt(steps []Step, elapsed time.Duration) Level {
	if elapsed < 0 {
		return Inactive
	}

	var start time.Duration

	for _, s := range steps {
		if elapsed < start+s.Duration {
			return s.Level
		}

		start += s.Duration
	}

	return Inactive
}
