package model

import (
	"testing"
	"time"

	"github.com/civitas-coop/microfund/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPledge(state PledgeState) *Pledge {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := &Pledge{
		ID:         42,
		CampaignID: 1,
		Amount:     100,
		State:      StatePending,
		CreatedAt:  now,
	}
	switch state {
	case StateConfirmed:
		_ = p.Confirm(now)
	case StateCounted:
		_ = p.Confirm(now)
		_ = p.Count(now)
	case StateDiscarded:
		_ = p.Discard(now)
	case StateReturned:
		_ = p.Confirm(now)
		_ = p.Return(now)
	case StatePending:
	}
	return p
}

func TestPledgeConfirm(t *testing.T) {
	now := time.Now()

	t.Run("pending becomes confirmed", func(t *testing.T) {
		p := newTestPledge(StatePending)
		require.NoError(t, p.Confirm(now))
		assert.Equal(t, StateConfirmed, p.State)
		require.NotNil(t, p.ConfirmedAt)
		assert.Equal(t, now, *p.ConfirmedAt)
	})

	t.Run("confirming twice is a no-op", func(t *testing.T) {
		p := newTestPledge(StateConfirmed)
		first := *p.ConfirmedAt
		require.NoError(t, p.Confirm(now))
		assert.Equal(t, StateConfirmed, p.State)
		assert.Equal(t, first, *p.ConfirmedAt, "original confirmation time must survive")
	})

	t.Run("confirming a counted pledge is a no-op", func(t *testing.T) {
		p := newTestPledge(StateCounted)
		require.NoError(t, p.Confirm(now))
		assert.Equal(t, StateCounted, p.State)
	})

	t.Run("discarded pledges stay discarded", func(t *testing.T) {
		p := newTestPledge(StateDiscarded)
		err := p.Confirm(now)
		require.Error(t, err)
		assert.True(t, common.IsStateError(err))
		assert.Equal(t, StateDiscarded, p.State)
	})
}

func TestPledgeUnconfirm(t *testing.T) {
	t.Run("confirmed goes back to pending", func(t *testing.T) {
		p := newTestPledge(StateConfirmed)
		require.NoError(t, p.Unconfirm())
		assert.Equal(t, StatePending, p.State)
		assert.Nil(t, p.ConfirmedAt)
	})

	t.Run("pending is a no-op", func(t *testing.T) {
		p := newTestPledge(StatePending)
		require.NoError(t, p.Unconfirm())
		assert.Equal(t, StatePending, p.State)
	})

	t.Run("counted pledges cannot be unconfirmed", func(t *testing.T) {
		p := newTestPledge(StateCounted)
		err := p.Unconfirm()
		require.Error(t, err)
		assert.True(t, common.IsStateError(err))
		assert.Equal(t, StateCounted, p.State)
		assert.NotNil(t, p.CountedAt)
	})
}

func TestPledgeCount(t *testing.T) {
	now := time.Now()

	t.Run("confirmed becomes counted", func(t *testing.T) {
		p := newTestPledge(StateConfirmed)
		require.NoError(t, p.Count(now))
		assert.Equal(t, StateCounted, p.State)
		assert.NotNil(t, p.CountedAt)
	})

	t.Run("counting twice is a no-op", func(t *testing.T) {
		p := newTestPledge(StateCounted)
		first := *p.CountedAt
		require.NoError(t, p.Count(now))
		assert.Equal(t, first, *p.CountedAt)
	})

	t.Run("pending cannot be counted", func(t *testing.T) {
		p := newTestPledge(StatePending)
		err := p.Count(now)
		require.Error(t, err)
		assert.True(t, common.IsStateError(err))
	})
}

func TestPledgeDiscard(t *testing.T) {
	now := time.Now()

	for _, state := range []PledgeState{StatePending, StateConfirmed, StateCounted} {
		t.Run("discard from "+string(state), func(t *testing.T) {
			p := newTestPledge(state)
			require.NoError(t, p.Discard(now))
			assert.Equal(t, StateDiscarded, p.State)
			assert.NotNil(t, p.DiscardedAt)
		})
	}

	t.Run("discard is irreversible", func(t *testing.T) {
		p := newTestPledge(StateDiscarded)
		assert.Error(t, p.Confirm(now))
		assert.Error(t, p.Count(now))
		assert.Error(t, p.Return(now))
		assert.Equal(t, StateDiscarded, p.State)
	})

	t.Run("returned pledges cannot be discarded", func(t *testing.T) {
		p := newTestPledge(StateReturned)
		assert.Error(t, p.Discard(now))
	})
}

func TestPledgeReturn(t *testing.T) {
	now := time.Now()

	t.Run("counted can be returned", func(t *testing.T) {
		p := newTestPledge(StateCounted)
		require.NoError(t, p.Return(now))
		assert.Equal(t, StateReturned, p.State)
		assert.NotNil(t, p.ReturnedAt)
		// The counted slot stays retired after the refund.
		assert.True(t, p.CountsTowardCapacity())
	})

	t.Run("pending cannot be returned", func(t *testing.T) {
		p := newTestPledge(StatePending)
		err := p.Return(now)
		require.Error(t, err)
		assert.True(t, common.IsStateError(err))
	})
}

func TestPledgeAggregationFlags(t *testing.T) {
	tests := []struct {
		name       string
		state      PledgeState
		capacity   bool
		confidence bool
	}{
		{name: "pending", state: StatePending, capacity: false, confidence: false},
		{name: "confirmed", state: StateConfirmed, capacity: false, confidence: true},
		{name: "counted", state: StateCounted, capacity: true, confidence: true},
		{name: "discarded", state: StateDiscarded, capacity: false, confidence: false},
		// Returned without ever being counted: the confirmation stays on
		// record but no slot was occupied.
		{name: "returned", state: StateReturned, capacity: false, confidence: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPledge(tt.state)
			assert.Equal(t, tt.capacity, p.CountsTowardCapacity(), "capacity")
			assert.Equal(t, tt.confidence, p.CountsTowardConfidence(), "confidence")
		})
	}

	t.Run("discard releases a counted slot", func(t *testing.T) {
		now := time.Now()
		p := newTestPledge(StateCounted)
		require.NoError(t, p.Discard(now))
		assert.False(t, p.CountsTowardCapacity())
		assert.False(t, p.CountsTowardConfidence())
	})
}

func TestPledgeCanTransfer(t *testing.T) {
	assert.True(t, newTestPledge(StatePending).CanTransfer())
	assert.True(t, newTestPledge(StateConfirmed).CanTransfer())
	assert.True(t, newTestPledge(StateReturned).CanTransfer())
	assert.False(t, newTestPledge(StateDiscarded).CanTransfer())
}

func TestPayerFullName(t *testing.T) {
	assert.Equal(t, "Juan García", Payer{FirstName: "Juan", LastName: "García"}.FullName())
	assert.Equal(t, "García", Payer{LastName: "García"}.FullName())
	assert.Equal(t, "Juan", Payer{FirstName: "Juan"}.FullName())
	assert.Equal(t, "", Payer{}.FullName())
}
