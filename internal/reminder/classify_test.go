package reminder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var baseTime = time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)

func hoursAfter(h float64) time.Time {
	return baseTime.Add(time.Duration(h * float64(time.Hour)))
}

// TestClassify_Boundaries checks the window edges: exclusive below,
// inclusive above.
func TestClassify_Boundaries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		hours float64
		want  Window
	}{
		{"already passed", -1, None},
		{"exactly now", 0, None},
		{"one second ahead", 1.0 / 3600, NearTerm},
		{"ten hours", 10, NearTerm},
		{"exactly 24h", 24, NearTerm},
		{"just past 24h", 24.0001, MidTerm},
		{"fifty hours", 50, MidTerm},
		{"exactly 72h", 72, MidTerm},
		{"just past 72h", 72.0001, None},
		{"hundred hours", 100, None},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Classify(baseTime, hoursAfter(tc.hours)))
		})
	}
}

// TestClassify_Ranges verifies the decision table over arbitrary offsets.
func TestClassify_Ranges(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		offset := time.Duration(rapid.Int64Range(
			int64(-200*time.Hour), int64(200*time.Hour),
		).Draw(t, "offset"))
		hours := offset.Hours()

		got := Classify(baseTime, baseTime.Add(offset))
		switch {
		case hours > 0 && hours <= 24:
			require.Equal(t, NearTerm, got)
		case hours > 24 && hours <= 72:
			require.Equal(t, MidTerm, got)
		default:
			require.Equal(t, None, got)
		}
	})
}

// TestClassify_Deterministic verifies repeated calls agree and that only the
// distance between the two instants matters.
func TestClassify_Deterministic(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		now := time.Unix(rapid.Int64Range(0, 4_000_000_000).Draw(t, "now"), 0).UTC()
		offset := time.Duration(rapid.Int64Range(
			int64(-100*time.Hour), int64(100*time.Hour),
		).Draw(t, "offset"))
		shift := time.Duration(rapid.Int64Range(
			int64(-1000*time.Hour), int64(1000*time.Hour),
		).Draw(t, "shift"))

		first := Classify(now, now.Add(offset))
		require.Equal(t, first, Classify(now, now.Add(offset)))
		require.Equal(t, first, Classify(now.Add(shift), now.Add(shift+offset)))
	})
}

func TestCompose(t *testing.T) {
	t.Parallel()

	title, body := Compose(Event{Agenda: "Hearing"}, NearTerm)
	require.Equal(t, "Event Tomorrow!", title)
	require.Equal(t, `Reminder: "Hearing" is happening in less than 24 hours!`, body)

	title, body = Compose(Event{}, MidTerm)
	require.Equal(t, "Event in 3 Days", title)
	require.Equal(t, `Upcoming: "Your event" is happening in less than 3 days`, body)

	title, body = Compose(Event{Agenda: "Hearing"}, None)
	require.Empty(t, title)
	require.Empty(t, body)
}

func TestWindowKind(t *testing.T) {
	t.Parallel()

	require.Equal(t, "24h", NearTerm.Kind())
	require.Equal(t, "72h", MidTerm.Kind())
	require.Empty(t, None.Kind())
}
