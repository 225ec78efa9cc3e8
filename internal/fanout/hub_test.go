package fanout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tiback/helpdesk/internal/domain"
	"github.com/tiback/helpdesk/internal/events"
)

func newTestHub(buffer int) *Hub {
	return NewHub(buffer, zap.NewNop())
}

func actorRef() events.Actor {
	return events.Actor{ID: "a1", Role: domain.RoleSupervisor}
}

func TestPublishReachesJoinedSubscriber(t *testing.T) {
	hub := newTestHub(4)
	sub := hub.NewSubscriber()
	hub.Join(sub, "ticket:t1")

	event := events.New(events.KindTicketTransitioned, "t1", actorRef(), nil)
	delivered := hub.Publish("ticket:t1", event)

	require.Equal(t, 1, delivered)
	received := <-sub.Events()
	assert.Equal(t, event.ID, received.ID)
}

func TestNoDeliveryBeforeJoin(t *testing.T) {
	hub := newTestHub(4)
	sub := hub.NewSubscriber()

	before := events.New(events.KindTicketTransitioned, "t1", actorRef(), nil)
	assert.Equal(t, 0, hub.Publish("ticket:t1", before))

	hub.Join(sub, "ticket:t1")
	after := events.New(events.KindTicketTransitioned, "t1", actorRef(), nil)
	require.Equal(t, 1, hub.Publish("ticket:t1", after))

	received := <-sub.Events()
	assert.Equal(t, after.ID, received.ID, "only the post-join event is delivered")
	assert.Empty(t, sub.Events())
}

func TestDeliveryPreservesPublishOrder(t *testing.T) {
	hub := newTestHub(8)
	sub := hub.NewSubscriber()
	hub.Join(sub, "ticket:t1")

	var published []string
	for i := 0; i < 5; i++ {
		event := events.New(events.KindTicketTransitioned, "t1", actorRef(), nil)
		published = append(published, event.ID)
		hub.Publish("ticket:t1", event)
	}

	for _, want := range published {
		got := <-sub.Events()
		assert.Equal(t, want, got.ID)
	}
}

func TestLeaveStopsDelivery(t *testing.T) {
	hub := newTestHub(4)
	sub := hub.NewSubscriber()
	hub.Join(sub, "ticket:t1")
	hub.Leave(sub, "ticket:t1")

	assert.Equal(t, 0, hub.Publish("ticket:t1", events.New(events.KindTicketTransitioned, "t1", actorRef(), nil)))
	assert.Equal(t, 0, hub.Subscribers("ticket:t1"))
}

func TestDropClosesStreamAndClearsMemberships(t *testing.T) {
	hub := newTestHub(4)
	sub := hub.NewSubscriber()
	hub.Join(sub, "ticket:t1")
	hub.Join(sub, RoleChannel(domain.RoleSupervisor))

	hub.Drop(sub)

	assert.Equal(t, 0, hub.Subscribers("ticket:t1"))
	assert.Equal(t, 0, hub.Subscribers(RoleChannel(domain.RoleSupervisor)))
	_, open := <-sub.Events()
	assert.False(t, open, "event stream closed on drop")

	// dropping twice is harmless
	hub.Drop(sub)
}

func TestSlowSubscriberLosesEventsNotOthers(t *testing.T) {
	hub := newTestHub(1)
	slow := hub.NewSubscriber()
	fast := hub.NewSubscriber()
	hub.Join(slow, "ticket:t1")
	hub.Join(fast, "ticket:t1")

	first := events.New(events.KindTicketTransitioned, "t1", actorRef(), nil)
	second := events.New(events.KindTicketTransitioned, "t1", actorRef(), nil)

	assert.Equal(t, 2, hub.Publish("ticket:t1", first))
	<-fast.Events() // fast drains, slow does not
	assert.Equal(t, 1, hub.Publish("ticket:t1", second))

	got := <-slow.Events()
	assert.Equal(t, first.ID, got.ID, "slow subscriber kept the buffered event")
	got = <-fast.Events()
	assert.Equal(t, second.ID, got.ID)
}

func TestDuplicateDeliveryAcrossChannels(t *testing.T) {
	hub := newTestHub(4)
	sub := hub.NewSubscriber()
	hub.Join(sub, "ticket:t1")
	hub.Join(sub, ActorChannel(domain.RoleHandler, "h1"))

	event := events.New(events.KindTicketAssigned, "t1", actorRef(), nil)
	hub.Publish("ticket:t1", event)
	hub.Publish(ActorChannel(domain.RoleHandler, "h1"), event)

	first := <-sub.Events()
	second := <-sub.Events()
	assert.Equal(t, event.ID, first.ID)
	assert.Equal(t, event.ID, second.ID, "duplicates are expected, consumers dedupe by id")
}

func TestChannelNames(t *testing.T) {
	assert.Equal(t, "ticket:42", TicketChannel("42"))
	assert.Equal(t, "role:SUPERVISOR", RoleChannel(domain.RoleSupervisor))
	assert.Equal(t, "actor:HANDLER:7", ActorChannel(domain.RoleHandler, "7"))
	assert.Equal(t, "chat:supervisor-handler:42", ChatChannel(domain.ChatSupervisorHandler, "42"))
	assert.Equal(t, "chat:handler-client:42", ChatChannel(domain.ChatHandlerClient, "42"))
}
