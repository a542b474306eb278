// AccessMate - Accessible Place Recommendations
// Copyright 2026 TudorG03
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/TudorG03/accessmate-sub003

// Package feedback records user feedback on issued recommendations,
// maintains per-user profile freshness, and drives targeted cache
// invalidation on negative signals.
package feedback

import (
	"time"

	"github.com/TudorG03/accessmate-sub003/internal/geo"
)

// Action classifies a feedback event.
type Action string

const (
	ActionViewed    Action = "viewed"
	ActionVisited   Action = "visited"
	ActionDismissed Action = "dismissed"
	ActionSaved     Action = "saved"
	ActionShared    Action = "shared"
	ActionClicked   Action = "clicked"
)

// knownActions is the closed action set, used for validation and for the
// profile completeness denominator.
var knownActions = map[Action]struct{}{
	ActionViewed:    {},
	ActionVisited:   {},
	ActionDismissed: {},
	ActionSaved:     {},
	ActionShared:    {},
	ActionClicked:   {},
}

// Valid reports whether the action is one of the known kinds.
func (a Action) Valid() bool {
	_, ok := knownActions[a]
	return ok
}

// Detail carries explicit feedback attached to the event.
type Detail struct {
	// Rating is an explicit 1-5 rating, 0 when absent.
	Rating int `json:"rating,omitempty"`

	// Liked is an explicit thumbs up/down, nil when absent.
	Liked *bool `json:"liked,omitempty"`

	// Comment is free-text feedback.
	Comment string `json:"comment,omitempty"`
}

// Implicit carries implicit engagement signals.
type Implicit struct {
	// DwellTimeMS is how long the user looked at the item.
	DwellTimeMS int64 `json:"dwell_time_ms,omitempty"`

	// ClickDepth is how deep into the detail view the user navigated.
	ClickDepth int `json:"click_depth,omitempty"`

	// ListPosition is the item's position in the presented list.
	ListPosition int `json:"list_position,omitempty"`
}

// Context is the situational context of the feedback event.
type Context struct {
	Location  geo.Point `json:"location"`
	Timestamp time.Time `json:"timestamp"`

	// Categories are the recommended place's categories, carried so the
	// profile's category diversity can be maintained without a place
	// lookup.
	Categories []string `json:"categories,omitempty"`
}

// ActualVisit records whether a recommended visit actually happened.
type ActualVisit struct {
	Confirmed bool      `json:"confirmed"`
	VisitedAt time.Time `json:"visited_at,omitempty"`
}

// Outcome carries post-hoc outcome information.
type Outcome struct {
	ActualVisit *ActualVisit `json:"actual_visit,omitempty"`

	// Satisfaction is a 1-5 satisfaction score, 0 when absent.
	Satisfaction int `json:"satisfaction,omitempty"`
}

// Feedback is one immutable feedback event. Created once per user action,
// appended, never mutated.
type Feedback struct {
	ID       string    `json:"id"`
	UserID   string    `json:"user_id"`
	PlaceID  string    `json:"place_id"`
	Action   Action    `json:"action"`
	Detail   *Detail   `json:"detail,omitempty"`
	Implicit *Implicit `json:"implicit,omitempty"`
	Context  Context   `json:"context"`
	Outcome  *Outcome  `json:"outcome,omitempty"`

	// CacheKey links back to the originating cache entry, when known.
	CacheKey string `json:"cache_key,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// confirmedVisit reports whether the event records a confirmed visit.
func (f *Feedback) confirmedVisit() bool {
	return f.Action == ActionVisited &&
		f.Outcome != nil && f.Outcome.ActualVisit != nil && f.Outcome.ActualVisit.Confirmed
}

// negativeSignal reports whether the event should trigger targeted cache
// invalidation: a confirmed visit (the user no longer needs the same
// list), an explicit low rating, or low satisfaction.
func (f *Feedback) negativeSignal() bool {
	if f.confirmedVisit() {
		return true
	}
	if f.Detail != nil && f.Detail.Rating > 0 && f.Detail.Rating <= 2 {
		return true
	}
	if f.Outcome != nil && f.Outcome.Satisfaction > 0 && f.Outcome.Satisfaction <= 2 {
		return true
	}
	return false
}

// positiveSignal reports whether the event counts toward the positive
// rate in feedback stats.
func (f *Feedback) positiveSignal() bool {
	if f.Action == ActionSaved || f.Action == ActionShared || f.confirmedVisit() {
		return true
	}
	if f.Detail != nil {
		if f.Detail.Rating >= 4 {
			return true
		}
		if f.Detail.Liked != nil && *f.Detail.Liked {
			return true
		}
	}
	return false
}

// engagedSignal reports whether the event is more than a passive view.
func (f *Feedback) engagedSignal() bool {
	return f.Action != ActionViewed || f.Detail != nil || f.Outcome != nil
}

// Profile is the per-user profile freshness document.
type Profile struct {
	UserID string `json:"user_id"`

	// Completeness estimates how much preference signal exists for the
	// user, in [0,1].
	Completeness float64 `json:"completeness"`

	// VisitCount counts confirmed visits.
	VisitCount int `json:"visit_count"`

	// CategoryDiversity is the normalized entropy of the category
	// counts, in [0,1].
	CategoryDiversity float64 `json:"category_diversity"`

	LastUpdated time.Time `json:"last_updated"`

	// Counters backing the derived measures above.
	TotalEvents    int            `json:"total_events"`
	RatedEvents    int            `json:"rated_events"`
	ActionCounts   map[string]int `json:"action_counts"`
	CategoryCounts map[string]int `json:"category_counts"`
}

// Stats summarize recorded feedback for the analytics endpoint.
type Stats struct {
	TotalFeedback  int64   `json:"total_feedback"`
	PositiveRate   float64 `json:"positive_rate"`
	EngagementRate float64 `json:"engagement_rate"`
}
