package attribution

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"

	usagedomain "github.com/storynest/storynest/internal/usage/domain"
)

func ptr[T any](v T) *T { return &v }

func makeEvent(id int64, kind usagedomain.EventKind, at time.Time, pos *int64) usagedomain.UsageEvent {
	return usagedomain.UsageEvent{
		ID:              snowflake.ID(id),
		ChildID:         1,
		BookID:          2,
		Kind:            kind,
		PositionSeconds: pos,
		OccurredAt:      at,
	}
}

func TestComputeCreditsForwardDeltas(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	events := []usagedomain.UsageEvent{
		makeEvent(1, usagedomain.EventKindPlayStart, base, ptr[int64](0)),
		makeEvent(2, usagedomain.EventKindHeartbeat, base.Add(30*time.Second), ptr[int64](30)),
		makeEvent(3, usagedomain.EventKindHeartbeat, base.Add(60*time.Second), ptr[int64](60)),
		makeEvent(4, usagedomain.EventKindHeartbeat, base.Add(90*time.Second), ptr[int64](20)),
		makeEvent(5, usagedomain.EventKindHeartbeat, base.Add(120*time.Second), ptr[int64](420)),
	}

	got := Compute(events)

	want := []int64{0, 30, 30, 0, 0}
	for i, a := range got {
		assert.Equal(t, want[i], a.Seconds, "event %d", i)
	}
	assert.Equal(t, int64(60), TotalSeconds(got))
}

func TestComputeHandlesUnorderedInput(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	events := []usagedomain.UsageEvent{
		makeEvent(3, usagedomain.EventKindHeartbeat, base.Add(60*time.Second), ptr[int64](60)),
		makeEvent(1, usagedomain.EventKindPlayStart, base, ptr[int64](0)),
		makeEvent(2, usagedomain.EventKindHeartbeat, base.Add(30*time.Second), ptr[int64](30)),
	}

	assert.Equal(t, int64(60), TotalSeconds(Compute(events)))
}

func TestComputeFirstAccruingEventEarnsNothing(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	got := Compute([]usagedomain.UsageEvent{
		makeEvent(1, usagedomain.EventKindHeartbeat, base, ptr[int64](500)),
	})

	assert.Equal(t, int64(0), got[0].Seconds)
}

func TestComputeIdleGapResetsStream(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	events := []usagedomain.UsageEvent{
		makeEvent(1, usagedomain.EventKindPlayStart, base, ptr[int64](0)),
		makeEvent(2, usagedomain.EventKindHeartbeat, base.Add(30*time.Second), ptr[int64](30)),
		// 11 minute gap: earns nothing, but re-anchors the position.
		makeEvent(3, usagedomain.EventKindHeartbeat, base.Add(11*time.Minute), ptr[int64](40)),
		makeEvent(4, usagedomain.EventKindHeartbeat, base.Add(11*time.Minute+30*time.Second), ptr[int64](70)),
	}

	got := Compute(events)

	assert.Equal(t, int64(30), got[1].Seconds)
	assert.Equal(t, int64(0), got[2].Seconds)
	assert.Equal(t, int64(30), got[3].Seconds)
}

func TestComputeExactBoundariesAreCredited(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	events := []usagedomain.UsageEvent{
		makeEvent(1, usagedomain.EventKindPlayStart, base, ptr[int64](0)),
		// exactly 600s of wall gap and exactly 300s of delta both pass
		makeEvent(2, usagedomain.EventKindHeartbeat, base.Add(600*time.Second), ptr[int64](300)),
	}

	got := Compute(events)
	assert.Equal(t, int64(300), got[1].Seconds)
}

func TestComputeTrustsClientWatchedSeconds(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	e := makeEvent(2, usagedomain.EventKindHeartbeat, base.Add(30*time.Second), ptr[int64](900))
	e.WatchedSeconds = ptr[int64](25)

	events := []usagedomain.UsageEvent{
		makeEvent(1, usagedomain.EventKindPlayStart, base, ptr[int64](0)),
		e,
	}

	got := Compute(events)
	assert.Equal(t, int64(25), got[1].Seconds)
}

func TestComputeStateTransitionsNeverEarn(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	resume := makeEvent(3, usagedomain.EventKindResume, base.Add(60*time.Second), ptr[int64](60))
	resume.WatchedSeconds = ptr[int64](60)

	events := []usagedomain.UsageEvent{
		makeEvent(1, usagedomain.EventKindPlayStart, base, ptr[int64](0)),
		makeEvent(2, usagedomain.EventKindPause, base.Add(30*time.Second), ptr[int64](30)),
		resume,
	}

	for _, a := range Compute(events) {
		assert.Equal(t, int64(0), a.Seconds)
	}
}

func TestComputePartitionsBySession(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	sessionA := snowflake.ID(100)
	sessionB := snowflake.ID(200)

	a1 := makeEvent(1, usagedomain.EventKindPlayStart, base, ptr[int64](0))
	a1.PlaybackSessionID = &sessionA
	a2 := makeEvent(2, usagedomain.EventKindHeartbeat, base.Add(30*time.Second), ptr[int64](30))
	a2.PlaybackSessionID = &sessionA

	// Same child and book, but a separate session: its first event must
	// not inherit session A's position.
	b1 := makeEvent(3, usagedomain.EventKindHeartbeat, base.Add(45*time.Second), ptr[int64](500))
	b1.PlaybackSessionID = &sessionB

	got := Compute([]usagedomain.UsageEvent{a1, a2, b1})

	bySeconds := map[int64]int64{}
	for _, a := range got {
		bySeconds[int64(a.Event.ID)] = a.Seconds
	}
	assert.Equal(t, int64(30), bySeconds[2])
	assert.Equal(t, int64(0), bySeconds[3])
}
