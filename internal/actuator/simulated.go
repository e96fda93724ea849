package actuator

import (
	"sync"

	"github.com/oshokin/sos-laser/internal/logger"
)

// SimulatedChannel keeps the line in memory.
type SimulatedChannel struct {
	// name identifies the line in logs.
	name string
	// level is the current line state.
	level Level
	// mu protects level.
	mu sync.RWMutex
}

// NewSimulatedChannel creates a simulated line.
func NewSimulatedChannel(name string) *SimulatedChannel {
	if name == "" {
		name = "simulated"
	}

	return &SimulatedChannel{name: name}
}

// Out stores the level.
func (c *SimulatedChannel) Out(level Level) error {
	c.mu.Lock()
	c.level = level
	c.mu.Unlock()

	logger.Logger().Debugw("Simulated line changed", "line", c.name, "level", level)

	return nil
}

// Level returns the stored level.
func (c *SimulatedChannel) Level() Level {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.level
}

// Name returns the line name.
func (c *SimulatedChannel) Name() string {
	return c.name
}
