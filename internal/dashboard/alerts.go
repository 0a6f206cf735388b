// v0
// internal/dashboard/alerts.go
package dashboard

import "time"

// Severity drives the visual treatment of an alert.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityInfo     Severity = "info"
)

// Alert is one entry of the alert surface.
type Alert struct {
	ID         string    `json:"id"`
	Timestamp  string    `json:"timestamp"`
	ReceivedAt time.Time `json:"receivedAt"`
	Severity   Severity  `json:"severity"`
	Type       string    `json:"type"`
	Message    string    `json:"message"`
}

// AlertList keeps the newest alerts first and drops the oldest beyond max.
type AlertList struct {
	max   int
	items []Alert
}

// NewAlertList returns an empty list retaining at most max alerts.
func NewAlertList(max int) *AlertList {
	return &AlertList{max: max, items: make([]Alert, 0, max)}
}

// Prepend inserts a at the head and returns how many old alerts were
// dropped.
func (l *AlertList) Prepend(a Alert) int {
	dropped := 0
	if len(l.items) == l.max {
		l.items = l.items[:len(l.items)-1]
		dropped = 1
	}
	l.items = append(l.items, Alert{})
	copy(l.items[1:], l.items[:len(l.items)-1])
	l.items[0] = a
	return dropped
}

// Items returns a copy, newest first.
func (l *AlertList) Items() []Alert {
	out := make([]Alert, len(l.items))
	copy(out, l.items)
	return out
}

// Recent returns up to n alerts, newest first.
func (l *AlertList) Recent(n int) []Alert {
	if n > len(l.items) || n < 0 {
		n = len(l.items)
	}
	out := make([]Alert, n)
	copy(out, l.items[:n])
	return out
}

// Len returns the number of retained alerts.
func (l *AlertList) Len() int { return len(l.items) }

// Max returns the retention cap.
func (l *AlertList) Max() int { return l.max }

// Clear drops every alert.
func (l *AlertList) Clear() { l.items = l.items[:0] }
