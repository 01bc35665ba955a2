package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case e, ok := <-ch:
		require.True(t, ok, "channel closed")
		return e
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return Event{}
	}
}

func TestBroker_DeliversOnlyToSubscribersOfThePost(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p1 := b.Subscribe(ctx, "post-1")
	p2 := b.Subscribe(ctx, "post-2")

	require.NoError(t, b.Publish(ctx, Event{Type: CommentAdded, PostID: "post-1"}))

	e := receive(t, p1)
	assert.Equal(t, CommentAdded, e.Type)
	select {
	case e := <-p2:
		t.Fatalf("unexpected event %v", e)
	default:
	}
}

func TestBroker_UnsubscribesOnCancel(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())

	ch := b.Subscribe(ctx, "post-1")
	assert.Equal(t, 1, b.Subscribers("post-1"))

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
	assert.Equal(t, 0, b.Subscribers("post-1"))
}

func TestBroker_SlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.Subscribe(ctx, "post-1")

	done := make(chan struct{})
	go func() {
		for i := 0; i < b.buffer*4; i++ {
			_ = b.Publish(ctx, Event{Type: PostLiked, PostID: "post-1"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
}

type recordingConn struct {
	subject string
	data    []byte
}

func (c *recordingConn) Publish(subject string, data []byte) error {
	c.subject, c.data = subject, data
	return nil
}

func TestNATSPublisher_Publish(t *testing.T) {
	conn := &recordingConn{}
	p := &NATSPublisher{conn: conn}

	err := p.Publish(context.Background(), Event{Type: PostLiked, PostID: "post-1", ActorID: "acc-1"})
	require.NoError(t, err)
	assert.Equal(t, "blog.post.liked", conn.subject)

	var got Event
	require.NoError(t, json.Unmarshal(conn.data, &got))
	assert.Equal(t, "post-1", got.PostID)
	assert.Equal(t, "acc-1", got.ActorID)
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, Event) error { return errors.New("down") }

func TestFanout_JoinsErrors(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := b.Subscribe(ctx, "post-1")

	err := Fanout{failingPublisher{}, b}.Publish(ctx, Event{Type: PostUpdated, PostID: "post-1"})
	assert.EqualError(t, err, "down")
	assert.Equal(t, PostUpdated, receive(t, ch).Type)
}
