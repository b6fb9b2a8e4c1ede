package service

import (
	"testing"
	"time"

	"StoryToVideo-gateway/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeReplaysBeforeLiveEvents(t *testing.T) {
	hub := NewProgressHub(time.Hour)

	replay := &models.Task{ID: "t1", Status: models.TaskStatusProcessing, Progress: 30}
	sub := hub.Subscribe("t1", replay)
	defer hub.Unsubscribe(sub)

	hub.Publish("t1", models.Task{ID: "t1", Status: models.TaskStatusProcessing, Progress: 60})

	ev := <-sub.C
	require.Equal(t, EventSnapshot, ev.Kind)
	assert.Equal(t, 30, ev.Task.Progress, "replay snapshot must arrive first")

	ev = <-sub.C
	assert.Equal(t, 60, ev.Task.Progress)
}

func TestPublishNeverBlocksOnSlowSubscriber(t *testing.T) {
	hub := NewProgressHub(time.Hour)
	sub := hub.Subscribe("t1", nil)
	defer hub.Unsubscribe(sub)

	done := make(chan struct{})
	go func() {
		// 不消费订阅通道，灌入远超缓冲的事件量
		for i := 0; i < subscriptionBuffer*4; i++ {
			hub.Publish("t1", models.Task{ID: "t1", Progress: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full subscriber channel")
	}
}

func TestPublishRoutesByTaskID(t *testing.T) {
	hub := NewProgressHub(time.Hour)
	subA := hub.Subscribe("a", nil)
	subB := hub.Subscribe("b", nil)
	defer hub.Unsubscribe(subA)
	defer hub.Unsubscribe(subB)

	hub.Publish("a", models.Task{ID: "a", Progress: 7})

	ev := <-subA.C
	assert.Equal(t, "a", ev.Task.ID)

	select {
	case ev := <-subB.C:
		t.Fatalf("subscriber of b received foreign event: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	hub := NewProgressHub(time.Hour)
	sub := hub.Subscribe("t1", nil)
	hub.Unsubscribe(sub)

	_, ok := <-sub.C
	assert.False(t, ok)

	// 退订后发布不应 panic
	hub.Publish("t1", models.Task{ID: "t1", Progress: 1})
}

func TestKeepAlivePingsIdleSubscriber(t *testing.T) {
	hub := NewProgressHub(30 * time.Millisecond)
	hub.Start()
	defer hub.Stop()

	sub := hub.Subscribe("t1", nil)
	defer hub.Unsubscribe(sub)

	select {
	case ev := <-sub.C:
		assert.Equal(t, EventPing, ev.Kind)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected a keep-alive ping for an idle subscriber")
	}
}
