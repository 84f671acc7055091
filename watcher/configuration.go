// SPDX-License-Identifier: GPL-3.0-or-later
package watcher

import (
	"fmt"
	"time"
)

const (
	DefaultPollInterval = 2 * time.Second
	DefaultMaxWait      = 5 * time.Minute
)

type ConfigFunc func(c *configuration) error

func PollInterval(interval time.Duration) ConfigFunc {
	return func(c *configuration) error {
		if interval <= 0 {
			return fmt.Errorf("PollInterval must be positive, got %s", interval)
		}

		c.PollInterval = interval
		return nil
	}
}

// MaxWait bounds WaitForMatch. A MaxWait below the poll interval still
// results in one poll cycle.
func MaxWait(maxWait time.Duration) ConfigFunc {
	return func(c *configuration) error {
		if maxWait <= 0 {
			return fmt.Errorf("MaxWait must be positive, got %s", maxWait)
		}

		c.MaxWait = maxWait
		return nil
	}
}

// DeleteMatched removes a message once a value was extracted from it.
func DeleteMatched() ConfigFunc {
	return func(c *configuration) error {
		if c.MoveMatched {
			return fmt.Errorf("MoveMatched and DeleteMatched cannot be used at the same time")
		}

		c.DeleteMatched = true
		return nil
	}
}

// MoveMatched moves a message to folder once a value was extracted from it.
func MoveMatched(folder string) ConfigFunc {
	return func(c *configuration) error {
		if len(folder) == 0 {
			return fmt.Errorf("MatchedFolder cannot be empty")
		}

		if c.DeleteMatched {
			return fmt.Errorf("MoveMatched and DeleteMatched cannot be used at the same time")
		}

		c.MoveMatched = true
		c.MatchedFolder = folder
		return nil
	}
}

type configuration struct {
	PollInterval time.Duration
	MaxWait      time.Duration

	DeleteMatched bool
	MoveMatched   bool
	MatchedFolder string
}

func defaultConfiguration() *configuration {
	return &configuration{
		PollInterval: DefaultPollInterval,
		MaxWait:      DefaultMaxWait,
	}
}
