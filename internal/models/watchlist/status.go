package models

import (
	"fmt"
	"strings"
)

// WatchStatus is where an anime sits on a user's shelf.
type WatchStatus string

const (
	StatusPlanToWatch WatchStatus = "plan_to_watch"
	StatusWatching    WatchStatus = "watching"
	StatusCompleted   WatchStatus = "completed"
	StatusOnHold      WatchStatus = "on_hold"
	StatusDropped     WatchStatus = "dropped"
)

// Statuses lists every status in display order.
var Statuses = []WatchStatus{StatusPlanToWatch, StatusWatching, StatusCompleted, StatusOnHold, StatusDropped}

func (s WatchStatus) Valid() bool {
	for _, st := range Statuses {
		if s == st {
			return true
		}
	}
	return false
}

// ParseWatchStatus accepts exact enum values only.
func ParseWatchStatus(s string) (WatchStatus, error) {
	st := WatchStatus(strings.TrimSpace(s))
	if !st.Valid() {
		return "", fmt.Errorf("unknown watch status %q", s)
	}
	return st, nil
}

// StatusCounts maps every status to a count; missing statuses are zero.
type StatusCounts map[WatchStatus]int64

// ZeroStatusCounts returns a map holding every status at zero.
func ZeroStatusCounts() StatusCounts {
	out := make(StatusCounts, len(Statuses))
	for _, s := range Statuses {
		out[s] = 0
	}
	return out
}

// Total sums every status.
func (c StatusCounts) Total() int64 {
	var n int64
	for _, v := range c {
		n += v
	}
	return n
}

// CompletionRate is completed/total as a percentage rounded to one decimal.
func (c StatusCounts) CompletionRate() float64 {
	total := c.Total()
	if total == 0 {
		return 0
	}
	rate := float64(c[StatusCompleted]) / float64(total) * 100
	return float64(int64(rate*10+0.5)) / 10
}
