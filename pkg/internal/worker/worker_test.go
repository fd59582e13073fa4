package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/minio/minio-go/v7/pkg/notification"

	"github.com/yeisme/datanexus/pkg/internal/model"
	"github.com/yeisme/datanexus/pkg/internal/service"
	"github.com/yeisme/datanexus/pkg/internal/storage/mq"
	"github.com/yeisme/datanexus/pkg/internal/worker"
	"github.com/yeisme/datanexus/pkg/queue"
)

type fakeIngester struct {
	mu   sync.Mutex
	refs []queue.ObjectRef
	err  error
	done chan queue.ObjectRef
}

func (f *fakeIngester) Ingest(_ context.Context, ref queue.ObjectRef) (*model.Submission, error) {
	f.mu.Lock()
	f.refs = append(f.refs, ref)
	f.mu.Unlock()

	if f.done != nil {
		f.done <- ref
	}

	return &model.Submission{ID: ref.ObjectKey}, f.err
}

func newWorker(t *testing.T, ing worker.Ingester) (*worker.Worker, *gochannel.GoChannel) {
	t.Helper()

	ch := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { _ = ch.Close() })

	w, err := worker.New(mq.NewWithPubSub(ch, ch), ing, worker.Options{Concurrency: 2})
	if err != nil {
		t.Fatalf("new worker: %v", err)
	}

	return w, ch
}

func objectMessage(t *testing.T, key string) *message.Message {
	t.Helper()

	msg, err := queue.NewWatermillMessage(queue.TopicObjectStored, queue.ObjectStoredPayload{
		Object: queue.ObjectRef{Bucket: "uploads", ObjectKey: key},
		Source: queue.SourceReprocess,
	})
	if err != nil {
		t.Fatalf("build message: %v", err)
	}

	return msg
}

func TestHandleAcksNonRetryable(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{"ok", nil, false},
		{"not found", fmt.Errorf("wrap: %w", service.ErrNotFound), false},
		{"sold", &service.Error{Kind: service.ErrConflict, Msg: "submission already sold"}, false},
		{"validation", &service.Error{Kind: service.ErrValidation, Msg: "object key required"}, false},
		{"persistence", &service.Error{Kind: service.ErrPersistence, Msg: "store submission failed"}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ing := &fakeIngester{err: tc.err}
			w, _ := newWorker(t, ing)

			err := w.Handle(objectMessage(t, "alice/a.png"))
			if (err != nil) != tc.wantErr {
				t.Fatalf("err=%v wantErr=%v", err, tc.wantErr)
			}

			if len(ing.refs) != 1 || ing.refs[0].ObjectKey != "alice/a.png" {
				t.Fatalf("refs=%v", ing.refs)
			}
		})
	}
}

func TestHandleDropsMalformed(t *testing.T) {
	ing := &fakeIngester{}
	w, _ := newWorker(t, ing)

	if err := w.Handle(message.NewMessage("bad", []byte("{not json"))); err != nil {
		t.Fatalf("malformed message should be acked: %v", err)
	}

	if len(ing.refs) != 0 {
		t.Fatalf("ingest called for malformed message")
	}
}

func TestRunConsumesEvents(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ing := &fakeIngester{done: make(chan queue.ObjectRef, 1)}
	w, ch := newWorker(t, ing)

	go func() { _ = w.Run(ctx) }()

	t.Cleanup(func() { _ = w.Close() })

	select {
	case <-w.Running():
	case <-ctx.Done():
		t.Fatal("router did not start")
	}

	if err := queue.PublishObjectStored(ch, queue.ObjectStoredPayload{
		Object: queue.ObjectRef{Bucket: "uploads", ObjectKey: "bob/notes.txt", ETag: "e1"},
	}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case ref := <-ing.done:
		if ref.ObjectKey != "bob/notes.txt" {
			t.Fatalf("ref=%+v", ref)
		}
	case <-ctx.Done():
		t.Fatal("event not consumed")
	}
}

func TestRetryable(t *testing.T) {
	if worker.Retryable(service.ErrNotFound) || worker.Retryable(service.ErrConflict) {
		t.Fatal("terminal errors must not be retried")
	}

	if !worker.Retryable(errors.New("connection reset")) || !worker.Retryable(service.ErrPersistence) {
		t.Fatal("transient errors should be retried")
	}
}

func TestRefFromEvent(t *testing.T) {
	var ev notification.Event

	ev.S3.Bucket.Name = "uploads"
	ev.S3.Object.Key = "alice/my+report%282%29.txt"
	ev.S3.Object.ETag = "abc"
	ev.S3.Object.Size = 42
	ev.S3.Object.UserMetadata = map[string]string{"X-Amz-Meta-Userid": "alice", "content-type": "text/plain"}

	ref := worker.RefFromEvent(ev)

	if ref.Bucket != "uploads" || ref.ObjectKey != "alice/my report(2).txt" || ref.ETag != "abc" || ref.Size != 42 {
		t.Fatalf("ref=%+v", ref)
	}

	if ref.UserMetadata["userid"] != "alice" {
		t.Fatalf("metadata=%v", ref.UserMetadata)
	}
}
