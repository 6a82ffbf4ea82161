// Package availability decides whether a teammate can respond right now.
// The product shipped with two divergent gating behaviors in different chat
// paths; here the choice is an explicit injectable Policy selected once from
// configuration, never hard-coded at call sites.
package availability

import (
	"time"

	"github.com/crewmate-app/crewmate/internal/roster"
)

// Unavailability reasons.
const (
	ReasonDisabled       = "disabled"
	ReasonQuotaExhausted = "quota_exhausted"
	ReasonWrongDay       = "wrong_day"
	ReasonOutsideHours   = "outside_hours"
)

// Verdict is the derived availability of one teammate. Not stored.
type Verdict struct {
	Available    bool   `json:"available"`
	Reason       string `json:"reason,omitempty"`
	Message      string `json:"message,omitempty"`
	MessagesLeft int    `json:"messagesLeftToday,omitempty"`
}

// Policy evaluates a teammate record against the current wall clock and
// project day. Implementations must be pure.
type Policy interface {
	Evaluate(tm *roster.Teammate, now time.Time, currentDay int) Verdict
}

// AlwaysOn gates only on the isActive flag and the daily quota. Personas are
// treated as available around the clock regardless of their configured
// hour/day windows. This is the default policy.
type AlwaysOn struct{}

func (AlwaysOn) Evaluate(tm *roster.Teammate, _ time.Time, _ int) Verdict {
	if !tm.IsAI() {
		return Verdict{Available: true}
	}
	if v, ok := gateActiveAndQuota(tm); !ok {
		return v
	}
	return Verdict{Available: true, MessagesLeft: tm.State.MessagesLeftToday}
}

// Windowed additionally gates on the persona's active-day set and UTC
// active-hours window.
type Windowed struct{}

func (Windowed) Evaluate(tm *roster.Teammate, now time.Time, currentDay int) Verdict {
	if !tm.IsAI() {
		return Verdict{Available: true}
	}
	if !tm.Config.IsActive {
		return Verdict{Reason: ReasonDisabled, Message: tm.Name + " is not part of this project right now."}
	}
	if !activeOnDay(tm.Config.ActiveDays, currentDay) {
		return Verdict{Reason: ReasonWrongDay, Message: tm.Name + " is off today."}
	}
	if !withinHours(tm.Config.ActiveHourStart, tm.Config.ActiveHourEnd, now.UTC().Hour()) {
		return Verdict{Reason: ReasonOutsideHours, Message: tm.Name + " is outside working hours."}
	}
	if tm.State.MessagesLeftToday <= 0 {
		return Verdict{Reason: ReasonQuotaExhausted, Message: tm.Name + " has used up today's messages."}
	}
	return Verdict{Available: true, MessagesLeft: tm.State.MessagesLeftToday}
}

func gateActiveAndQuota(tm *roster.Teammate) (Verdict, bool) {
	if !tm.Config.IsActive {
		return Verdict{Reason: ReasonDisabled, Message: tm.Name + " is not part of this project right now."}, false
	}
	if tm.State.MessagesLeftToday <= 0 {
		return Verdict{Reason: ReasonQuotaExhausted, Message: tm.Name + " has used up today's messages."}, false
	}
	return Verdict{}, true
}

func activeOnDay(days []int, day int) bool {
	if len(days) == 0 {
		return true
	}
	for _, d := range days {
		if d == day {
			return true
		}
	}
	return false
}

func withinHours(start, end, hour int) bool {
	if start == end {
		return true
	}
	if start < end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}
