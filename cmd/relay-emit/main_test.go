package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/severino-relay/internal/core/domain"
)

func TestBuildEvent(t *testing.T) {
	base := options{ticketID: "t-1", actorID: "A", at: "2026-10-14T09:30:00Z"}

	tests := []struct {
		event    string
		targetID string
		room     string
		wantRoom string
		wantKind domain.EventKind
	}{
		{event: "ticket:assigned", targetID: "T", wantRoom: "user:T", wantKind: domain.EventTicketAssigned},
		{event: "ticket:new", wantRoom: "managers", wantKind: domain.EventTicketNew},
		{event: "ticket:execution_registered", wantRoom: "managers", wantKind: domain.EventExecutionRegistered},
		{event: "ticket:closed", targetID: "U", wantRoom: "user:U", wantKind: domain.EventTicketClosed},
		{event: "ticket:new", room: "user:X", wantRoom: "user:X", wantKind: domain.EventTicketNew},
	}

	for _, tt := range tests {
		t.Run(tt.event+tt.room, func(t *testing.T) {
			opts := base
			opts.event = tt.event
			opts.targetID = tt.targetID
			opts.room = tt.room

			room, payload, err := buildEvent(opts)
			require.NoError(t, err)
			assert.Equal(t, tt.wantRoom, room)
			assert.Equal(t, tt.wantKind, payload.Kind())
		})
	}
}

func TestBuildEvent_Errors(t *testing.T) {
	_, _, err := buildEvent(options{event: "ticket:assigned"})
	require.Error(t, err)

	_, _, err = buildEvent(options{event: "ticket:closed"})
	require.Error(t, err)

	_, _, err = buildEvent(options{event: "ticket:reopened"})
	require.Error(t, err)
}

func TestBuildEvent_DefaultsTimestamp(t *testing.T) {
	_, payload, err := buildEvent(options{event: "ticket:new", ticketID: "t", actorID: "U"})
	require.NoError(t, err)

	p := payload.(*domain.TicketNewPayload)
	assert.NotEmpty(t, p.At)
}
