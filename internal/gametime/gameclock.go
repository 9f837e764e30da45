// Package gametime keeps the in-game calendar that drives daily and weekly
// quest resets.
package gametime

import (
	"fmt"
	"sync"
	"time"
)

const (
	HoursPerDay = 24

	// Time periods
	DawnHour = 6
	DuskHour = 18
)

// GameClock counts game hours and days. Day 0 starts at midnight.
type GameClock struct {
	currentHour int
	currentDay  int
	mu          sync.RWMutex
}

func NewGameClock() *GameClock {
	return &GameClock{}
}

// HourDuration is the real time one game hour takes when a game day lasts
// realMinutesPerDay. Non-positive values yield zero.
func HourDuration(realMinutesPerDay int) time.Duration {
	if realMinutesPerDay <= 0 {
		return 0
	}
	return time.Duration(realMinutesPerDay) * time.Minute / HoursPerDay
}

// GetHour returns the current game hour (0-23)
func (gc *GameClock) GetHour() int {
	gc.mu.RLock()
	defer gc.mu.RUnlock()
	return gc.currentHour
}

// Day returns the number of completed game days.
func (gc *GameClock) Day() int {
	gc.mu.RLock()
	defer gc.mu.RUnlock()
	return gc.currentDay
}

// SetTime moves the clock, e.g. when resuming a saved session.
func (gc *GameClock) SetTime(day, hour int) {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	gc.currentDay = max(day, 0)
	gc.currentHour = ((hour % HoursPerDay) + HoursPerDay) % HoursPerDay
}

// AdvanceHour increments the game hour, wrapping at 24. It reports whether a
// new day started.
func (gc *GameClock) AdvanceHour() bool {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	gc.currentHour = (gc.currentHour + 1) % HoursPerDay
	if gc.currentHour == 0 {
		gc.currentDay++
		return true
	}
	return false
}

// IsDay returns true if current hour is during day period (6:00-17:59)
func (gc *GameClock) IsDay() bool {
	hour := gc.GetHour()
	return hour >= DawnHour && hour < DuskHour
}

// GetTimeOfDay returns a string describing the current time period
func (gc *GameClock) GetTimeOfDay() string {
	hour := gc.GetHour()

	switch {
	case hour < 6:
		return "night"
	case hour < 12:
		return "morning"
	case hour < 18:
		return "afternoon"
	default:
		return "evening"
	}
}

// GetTimeString returns a formatted time string (e.g., "Day 3, 14:00")
func (gc *GameClock) GetTimeString() string {
	gc.mu.RLock()
	defer gc.mu.RUnlock()
	return fmt.Sprintf("Day %d, %02d:00", gc.currentDay, gc.currentHour)
}
