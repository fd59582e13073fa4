package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/yeisme/datanexus/pkg/queue"
)

func TestObjectMessageID_Deterministic(t *testing.T) {
	ref := queue.ObjectRef{Bucket: "uploads", ObjectKey: "u1/a.png", ETag: "e1"}

	if queue.ObjectMessageID(ref) != queue.ObjectMessageID(ref) {
		t.Fatal("expected same id for same object version")
	}

	other := ref
	other.ETag = "e2"

	if queue.ObjectMessageID(ref) == queue.ObjectMessageID(other) {
		t.Fatal("expected different id for different etag")
	}
}

func TestPublishObjectStored_RoundTrip(t *testing.T) {
	ps := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 4}, watermill.NopLogger{})
	defer ps.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ch, err := ps.Subscribe(ctx, queue.TopicObjectStored)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	payload := queue.ObjectStoredPayload{
		Object: queue.ObjectRef{
			Bucket:       "uploads",
			ObjectKey:    "u1/report.md",
			ETag:         "abc",
			UserMetadata: map[string]string{"title": "Report"},
		},
		Source: queue.SourceReconcile,
	}

	if err := queue.PublishObjectStored(ps, payload, queue.WithProducer("test")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case msg := <-ch:
		defer msg.Ack()

		if msg.UUID != queue.ObjectMessageID(payload.Object) {
			t.Fatalf("uuid = %s", msg.UUID)
		}

		env, err := queue.ParseObjectStored(msg)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}

		if env.Header.Topic != queue.TopicObjectStored || env.Header.Producer != "test" {
			t.Fatalf("header = %+v", env.Header)
		}

		if env.Payload.Object.UserMetadata["title"] != "Report" || env.Payload.Source != queue.SourceReconcile {
			t.Fatalf("payload = %+v", env.Payload)
		}
	case <-ctx.Done():
		t.Fatal("timeout waiting for message")
	}
}

func TestWithMessageID_Override(t *testing.T) {
	msg, err := queue.NewWatermillMessage(queue.TopicMarketSettled, queue.MarketSettledPayload{SettlementID: "s1"},
		queue.WithMessageID("fixed"))
	if err != nil {
		t.Fatal(err)
	}

	if msg.UUID != "fixed" || msg.Metadata.Get("topic") != queue.TopicMarketSettled {
		t.Fatalf("unexpected message %s %v", msg.UUID, msg.Metadata)
	}
}
