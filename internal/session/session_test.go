package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTableLifecycle(t *testing.T) {
	table := NewTable()

	require.Equal(t, FlowNone, table.Get(1).Flow)
	require.False(t, table.Update(1, func(s *State) { s.Field = "x" }))

	st := table.Begin(1, FlowRegistration, StepPhone)
	require.Equal(t, State{Flow: FlowRegistration, Step: StepPhone}, st)

	require.True(t, table.Update(1, func(s *State) {
		s.Draft.Phone = "+989123456789"
		s.Step = StepName
	}))
	got := table.Get(1)
	require.Equal(t, StepName, got.Step)
	require.Equal(t, "+989123456789", got.Draft.Phone)

	// Beginning another flow discards the draft.
	table.Begin(1, FlowSupport, StepInput)
	require.Empty(t, table.Get(1).Draft.Phone)

	require.Equal(t, FlowSupport, table.End(1))
	require.Equal(t, FlowNone, table.End(1))
	require.Equal(t, FlowNone, table.Get(1).Flow)
}

func TestTableIsolatesUsers(t *testing.T) {
	table := NewTable()
	var wg sync.WaitGroup
	for i := int64(0); i < 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			table.Begin(id, FlowReceipt, StepInput)
			table.Update(id, func(s *State) { s.TicketID = id })
		}(i)
	}
	wg.Wait()

	for i := int64(0); i < 50; i++ {
		require.Equal(t, i, table.Get(i).TicketID)
	}
}
