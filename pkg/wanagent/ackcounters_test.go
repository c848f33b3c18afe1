package wanagent

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAckCountersLoadUnknownSite(t *testing.T) {
	c := newAckCounters([]SiteID{1, 2})
	require.Equal(t, uint64(0), c.Load(99))
}

func TestAckCountersCompareAndAdvance(t *testing.T) {
	c := newAckCounters([]SiteID{1})

	require.True(t, c.CompareAndAdvance(1, 0))
	require.Equal(t, uint64(1), c.Load(1))

	require.False(t, c.CompareAndAdvance(1, 0))
	require.Equal(t, uint64(1), c.Load(1))

	require.True(t, c.CompareAndAdvance(1, 1))
	require.Equal(t, uint64(2), c.Load(1))
}

func TestAckCountersCompareAndAdvanceUnknownSite(t *testing.T) {
	c := newAckCounters([]SiteID{1})
	require.False(t, c.CompareAndAdvance(2, 0))
}

func TestAckCountersSnapshot(t *testing.T) {
	c := newAckCounters([]SiteID{1, 2, 3})
	c.CompareAndAdvance(1, 0)
	c.CompareAndAdvance(2, 0)
	c.CompareAndAdvance(2, 1)

	snap := c.Snapshot()
	require.Equal(t, map[SiteID]uint64{1: 1, 2: 2, 3: 0}, snap)
}
