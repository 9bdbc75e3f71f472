// Package attribution converts raw playback telemetry into credited
// watch seconds. The rules are deliberately conservative: when the
// signal is ambiguous the event earns nothing, so partners are never
// overpaid for gaps, rewinds or stale clients.
package attribution

import (
	"sort"

	"github.com/bwmarrin/snowflake"

	usagedomain "github.com/storynest/storynest/internal/usage/domain"
)

const (
	// MaxDeltaSeconds caps how much a single event can earn from its
	// position delta. Heartbeats arrive well inside this window on a
	// healthy client, so anything larger means lost telemetry.
	MaxDeltaSeconds = 300

	// SessionGapSeconds is the idle gap after which a stream of events
	// is treated as a new viewing, earning nothing for the jump.
	SessionGapSeconds = 600
)

// Attributed pairs an event with the watch seconds it earned.
type Attributed struct {
	Event   usagedomain.UsageEvent
	Seconds int64
}

// streamKey partitions events into playback streams. Events that share
// a playback session id belong together; events without one fall back
// to the (child, book) pair.
type streamKey struct {
	sessionID snowflake.ID
	childID   snowflake.ID
	bookID    snowflake.ID
}

func keyFor(e usagedomain.UsageEvent) streamKey {
	if e.PlaybackSessionID != nil && *e.PlaybackSessionID != 0 {
		return streamKey{sessionID: *e.PlaybackSessionID}
	}
	return streamKey{childID: e.ChildID, bookID: e.BookID}
}

// Compute assigns earned watch seconds to every event. The input may be
// in any order; events are grouped into streams and walked in
// (occurred_at, id) order within each stream.
func Compute(events []usagedomain.UsageEvent) []Attributed {
	streams := make(map[streamKey][]usagedomain.UsageEvent)
	order := make([]streamKey, 0)
	for _, e := range events {
		k := keyFor(e)
		if _, ok := streams[k]; !ok {
			order = append(order, k)
		}
		streams[k] = append(streams[k], e)
	}

	out := make([]Attributed, 0, len(events))
	for _, k := range order {
		out = append(out, computeStream(streams[k])...)
	}
	return out
}

func computeStream(events []usagedomain.UsageEvent) []Attributed {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].OccurredAt.Equal(events[j].OccurredAt) {
			return events[i].OccurredAt.Before(events[j].OccurredAt)
		}
		return events[i].ID < events[j].ID
	})

	out := make([]Attributed, 0, len(events))
	var prev *usagedomain.UsageEvent
	for i := range events {
		e := events[i]
		out = append(out, Attributed{Event: e, Seconds: attributeOne(e, prev)})
		prev = &events[i]
	}
	return out
}

// attributeOne decides what a single event earns given its predecessor
// in the same stream.
func attributeOne(e usagedomain.UsageEvent, prev *usagedomain.UsageEvent) int64 {
	// State transitions never earn. They only anchor the position for
	// whatever accrues next.
	if !e.Kind.Accrues() {
		return 0
	}

	// A client-reported watched_seconds is trusted outright, clamped at
	// zero. Clients that do their own foreground/visibility accounting
	// report through this field.
	if e.WatchedSeconds != nil {
		if *e.WatchedSeconds < 0 {
			return 0
		}
		return *e.WatchedSeconds
	}

	// Position-delta accrual needs a predecessor to measure against.
	if prev == nil {
		return 0
	}
	if e.PositionSeconds == nil || prev.PositionSeconds == nil {
		return 0
	}

	// An idle gap means the viewer walked away; the resumed stream
	// starts earning from its next event instead.
	gap := e.OccurredAt.Sub(prev.OccurredAt)
	if gap.Seconds() > SessionGapSeconds {
		return 0
	}

	delta := *e.PositionSeconds - *prev.PositionSeconds
	// Rewinds and seeks backward earn nothing rather than negative.
	if delta < 0 {
		return 0
	}
	// A jump beyond the cap is a seek or dropped telemetry, not viewing.
	if delta > MaxDeltaSeconds {
		return 0
	}
	return delta
}

// TotalSeconds sums the earned seconds of a computed batch.
func TotalSeconds(attributed []Attributed) int64 {
	var total int64
	for _, a := range attributed {
		total += a.Seconds
	}
	return total
}
