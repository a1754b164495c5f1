package websocket

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/severino-relay/internal/core/domain"
	apperrors "github.com/lorrc/severino-relay/internal/core/errors"
)

func newTestHub() *Hub {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHub(domain.NewRoomPolicy(nil), logger)
}

// newTestClient builds a client without a transport; only its send channel
// is exercised.
func newTestClient(hub *Hub, userID string, role domain.Role, buffer int) *Client {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := DefaultClientConfig()
	cfg.SendBufferSize = buffer
	return NewClient(hub, nil, domain.Identity{
		UserID:   userID,
		Username: userID,
		Role:     role,
		IsActive: true,
	}, cfg, logger)
}

func drain(c *Client) [][]byte {
	var frames [][]byte
	for {
		select {
		case f, ok := <-c.send:
			if !ok {
				return frames
			}
			frames = append(frames, f)
		default:
			return frames
		}
	}
}

func TestHub_RegisterJoinsRoomsFromIdentity(t *testing.T) {
	hub := newTestHub()

	tech := newTestClient(hub, "T", domain.RoleTecnico, 4)
	manager := newTestClient(hub, "M", domain.RolePreposto, 4)
	require.NoError(t, hub.Register(tech, nil))
	require.NoError(t, hub.Register(manager, nil))

	assert.Equal(t, []string{"user:T"}, hub.RoomsOf(tech))
	assert.ElementsMatch(t, []string{"user:M", domain.ManagersRoom}, hub.RoomsOf(manager))
	assert.Equal(t, 1, hub.MembersOf(domain.ManagersRoom))
	assert.Equal(t, 2, hub.ClientCount())
	assert.Equal(t, 3, hub.RoomCount())
}

func TestHub_RegisterTwiceIsNoop(t *testing.T) {
	hub := newTestHub()
	c := newTestClient(hub, "T", domain.RoleTecnico, 4)

	require.NoError(t, hub.Register(c, nil))
	require.NoError(t, hub.Register(c, nil))

	assert.Equal(t, 1, hub.ClientCount())
	assert.Equal(t, 1, hub.MembersOf("user:T"))
}

func TestHub_UnregisterIsIdempotent(t *testing.T) {
	hub := newTestHub()
	manager := newTestClient(hub, "M", domain.RoleAdmin, 4)
	other := newTestClient(hub, "N", domain.RoleAdmin, 4)
	require.NoError(t, hub.Register(manager, nil))
	require.NoError(t, hub.Register(other, nil))

	hub.Unregister(manager)
	clients, rooms, managers := hub.ClientCount(), hub.RoomCount(), hub.MembersOf(domain.ManagersRoom)

	hub.Unregister(manager)
	assert.Equal(t, clients, hub.ClientCount())
	assert.Equal(t, rooms, hub.RoomCount())
	assert.Equal(t, managers, hub.MembersOf(domain.ManagersRoom))
	assert.Equal(t, 1, managers)
	assert.Nil(t, hub.RoomsOf(manager))

	// send channel closed exactly once
	_, ok := <-manager.send
	assert.False(t, ok)
}

func TestHub_UnregisterUnknownClient(t *testing.T) {
	hub := newTestHub()
	stranger := newTestClient(hub, "X", domain.RoleTecnico, 4)

	assert.NotPanics(t, func() { hub.Unregister(stranger) })
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHub_DeliverToEmptyRoom(t *testing.T) {
	hub := newTestHub()
	c := newTestClient(hub, "T", domain.RoleTecnico, 4)
	require.NoError(t, hub.Register(c, nil))

	report := hub.Deliver("user:nobody", []byte(`{}`))

	assert.Zero(t, report.Recipients)
	assert.Zero(t, report.Dropped)
	assert.Empty(t, drain(c))
}

func TestHub_DeliverReachesEveryMemberOnce(t *testing.T) {
	hub := newTestHub()

	var managers []*Client
	for i := 0; i < 5; i++ {
		c := newTestClient(hub, fmt.Sprintf("m%d", i), domain.RolePreposto, 4)
		require.NoError(t, hub.Register(c, nil))
		managers = append(managers, c)
	}
	tech := newTestClient(hub, "T", domain.RoleTecnico, 4)
	require.NoError(t, hub.Register(tech, nil))

	report := hub.Deliver(domain.ManagersRoom, []byte(`{"event":"ticket:new"}`))

	assert.Equal(t, 5, report.Recipients)
	for _, m := range managers {
		frames := drain(m)
		require.Len(t, frames, 1)
		assert.JSONEq(t, `{"event":"ticket:new"}`, string(frames[0]))
	}
	assert.Empty(t, drain(tech))
}

func TestHub_DeliverPreservesOrderPerRoom(t *testing.T) {
	hub := newTestHub()
	c := newTestClient(hub, "T", domain.RoleTecnico, 8)
	require.NoError(t, hub.Register(c, nil))

	for i := 0; i < 5; i++ {
		hub.Deliver("user:T", []byte(fmt.Sprintf(`%d`, i)))
	}

	frames := drain(c)
	require.Len(t, frames, 5)
	for i, f := range frames {
		assert.Equal(t, fmt.Sprintf(`%d`, i), string(f))
	}
}

func TestHub_SlowClientIsEvictedWithoutAffectingOthers(t *testing.T) {
	hub := newTestHub()
	slow := newTestClient(hub, "slow", domain.RolePreposto, 1)
	fast := newTestClient(hub, "fast", domain.RolePreposto, 8)
	require.NoError(t, hub.Register(slow, nil))
	require.NoError(t, hub.Register(fast, nil))

	first := hub.Deliver(domain.ManagersRoom, []byte(`1`))
	second := hub.Deliver(domain.ManagersRoom, []byte(`2`))

	assert.Equal(t, 2, first.Recipients)
	assert.Equal(t, 1, second.Recipients)
	assert.Equal(t, 1, second.Dropped)

	assert.Len(t, drain(fast), 2)
	assert.Nil(t, hub.RoomsOf(slow))
	assert.Equal(t, 1, hub.MembersOf(domain.ManagersRoom))
}

func TestHub_ConcurrentChurnDoesNotAffectUnrelatedRoom(t *testing.T) {
	hub := newTestHub()

	const members = 10
	var targets []*Client
	for i := 0; i < members; i++ {
		c := newTestClient(hub, fmt.Sprintf("m%d", i), domain.RolePreposto, 256)
		require.NoError(t, hub.Register(c, nil))
		targets = append(targets, c)
	}

	const rounds = 100
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			c := newTestClient(hub, fmt.Sprintf("t%d", i), domain.RoleTecnico, 4)
			_ = hub.Register(c, nil)
			hub.Deliver(fmt.Sprintf("user:t%d", i), []byte(`x`))
			hub.Unregister(c)
		}
	}()

	reports := make([]int, rounds)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			reports[i] = hub.Deliver(domain.ManagersRoom, []byte(`y`)).Recipients
		}
	}()

	wg.Wait()

	for _, n := range reports {
		assert.Equal(t, members, n)
	}
	for _, c := range targets {
		assert.Len(t, drain(c), rounds)
	}
}

func TestHub_CloseDisconnectsAndRejectsRegistration(t *testing.T) {
	hub := newTestHub()
	c := newTestClient(hub, "T", domain.RoleTecnico, 4)
	require.NoError(t, hub.Register(c, nil))

	hub.Close()
	hub.Close()

	assert.Equal(t, 0, hub.ClientCount())
	_, ok := <-c.send
	assert.False(t, ok)

	late := newTestClient(hub, "L", domain.RoleTecnico, 4)
	require.ErrorIs(t, hub.Register(late, nil), apperrors.ErrRegistryClosed)
	assert.Equal(t, 0, hub.RoomCount())
}

func TestHub_SendToClient(t *testing.T) {
	hub := newTestHub()
	c := newTestClient(hub, "T", domain.RoleTecnico, 1)

	assert.False(t, hub.SendToClient(c, []byte(`a`)), "unregistered client")

	require.NoError(t, hub.Register(c, nil))
	assert.True(t, hub.SendToClient(c, []byte(`a`)))
	assert.False(t, hub.SendToClient(c, []byte(`b`)), "buffer full")
}

func TestHub_GreetingPrecedesRoomTraffic(t *testing.T) {
	hub := newTestHub()

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
				hub.Deliver("user:T", []byte(`{"event":"ticket:assigned"}`))
			}
		}
	}()

	for i := 0; i < 50; i++ {
		c := newTestClient(hub, "T", domain.RoleTecnico, 64)
		greet := func(rooms []string) []byte {
			return []byte(fmt.Sprintf(`{"event":"connection:ready","rooms":%q}`, rooms))
		}
		require.NoError(t, hub.Register(c, greet))

		first := <-c.send
		assert.Contains(t, string(first), "connection:ready")
		hub.Unregister(c)
	}

	close(stop)
	<-done
}

func TestHub_GreetingReceivesJoinedRooms(t *testing.T) {
	hub := newTestHub()
	c := newTestClient(hub, "M", domain.RolePreposto, 4)

	var got []string
	require.NoError(t, hub.Register(c, func(rooms []string) []byte {
		got = rooms
		return []byte(`ready`)
	}))

	assert.ElementsMatch(t, []string{"user:M", domain.ManagersRoom}, got)
	assert.Equal(t, [][]byte{[]byte(`ready`)}, drain(c))
}
