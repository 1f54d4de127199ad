package idx_test

import (
	"sort"
	"testing"
	"time"

	"github.com/aussiebroadwan/opsconsole/pkg/idx"
	"github.com/stretchr/testify/require"
)

func TestNewAndParse(t *testing.T) {
	id := idx.New()
	require.False(t, id.IsZero())

	parsed, err := idx.Parse(id.String())
	require.NoError(t, err)
	require.Equal(t, id, parsed)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := idx.Parse("")
	require.ErrorIs(t, err, idx.ErrInvalid)

	_, err = idx.Parse("not-a-ulid")
	require.ErrorIs(t, err, idx.ErrInvalid)
}

func TestMonotonicWithinMillisecond(t *testing.T) {
	// Ticket ids are compared in logs, so ids minted in a burst must sort in
	// creation order even when they share a timestamp.
	now := time.Unix(1700000000, 0).UTC()

	ids := make([]string, 0, 64)
	for range 64 {
		ids = append(ids, idx.NewAt(now).String())
	}

	require.True(t, sort.StringsAreSorted(ids))
}

func TestTimeExtraction(t *testing.T) {
	tm := time.Unix(1700000000, 0).UTC()
	id := idx.NewAt(tm)

	require.WithinDuration(t, tm, id.Time(), time.Millisecond)
	require.True(t, idx.Zero.Time().IsZero())
}
