package activity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubDeliversToAllSubscribers(t *testing.T) {
	hub := NewHub(nil)

	first, cancelFirst := hub.Subscribe()
	second, cancelSecond := hub.Subscribe()
	defer cancelFirst()
	defer cancelSecond()

	require.Equal(t, 2, hub.SubscriberCount())

	event := Event{Type: EventLoanCreated, LoanID: 1, BookID: 2, MemberID: 3, At: time.Now()}
	hub.Publish(event)

	assert.Equal(t, event, <-first)
	assert.Equal(t, event, <-second)
}

func TestHubCancelStopsDelivery(t *testing.T) {
	hub := NewHub(nil)

	events, cancel := hub.Subscribe()
	cancel()

	require.Equal(t, 0, hub.SubscriberCount())

	// Cancel is safe to call twice.
	cancel()

	_, open := <-events
	assert.False(t, open, "channel must be closed after cancel")
}

func TestHubPublishNeverBlocks(t *testing.T) {
	hub := NewHub(nil)

	_, cancel := hub.Subscribe()
	defer cancel()

	// Far more events than the subscriber buffer; the slow subscriber loses
	// events but the publisher must sail through.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			hub.Publish(Event{Type: EventLoanCreated, LoanID: int64(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}
