package jobs_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/glebarez/sqlite"
	minio "github.com/minio/minio-go/v7"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yeisme/datanexus/pkg/internal/jobs"
	"github.com/yeisme/datanexus/pkg/internal/model"
	"github.com/yeisme/datanexus/pkg/internal/repo"
	"github.com/yeisme/datanexus/pkg/queue"
)

type fakeLister struct{ objs []minio.ObjectInfo }

func (f *fakeLister) ListUploads(context.Context, string, int) ([]minio.ObjectInfo, error) {
	return f.objs, nil
}

func (f *fakeLister) UploadBucket() string { return "uploads" }

func TestReconcilerPublishesUnknownAndChanged(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := gorm.Open(sqlite.Open("file:jobs_reconcile?mode=memory&cache=shared"),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	if err := repo.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	r := repo.NewSubmissions(db)

	for _, s := range []*model.Submission{
		{ID: "same.png", OwnerID: "alice", Bucket: "uploads", ObjectKey: "alice/same.png", ETag: "e1",
			ScoreStatus: model.ScoreStatusScored, IsSafe: true, UploadedAt: time.Now()},
		{ID: "changed.png", OwnerID: "alice", Bucket: "uploads", ObjectKey: "alice/changed.png", ETag: "old",
			ScoreStatus: model.ScoreStatusScored, IsSafe: true, UploadedAt: time.Now()},
	} {
		if err := r.Upsert(ctx, s); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	ch := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer ch.Close()

	msgs, err := ch.Subscribe(ctx, queue.TopicObjectStored)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	rec := &jobs.Reconciler{
		Lister: &fakeLister{objs: []minio.ObjectInfo{
			{Key: "alice/same.png", ETag: "e1"},
			{Key: "alice/changed.png", ETag: "new"},
			{Key: "bob/new.txt", ETag: "e9", UserMetadata: minio.StringMap{"X-Amz-Meta-Userid": "bob"}},
		}},
		Repo: r,
		Pub:  ch,
	}

	n, err := rec.Run(ctx)
	if err != nil || n != 2 {
		t.Fatalf("published=%d err=%v", n, err)
	}

	got := map[string]string{}

	for len(got) < 2 {
		select {
		case msg := <-msgs:
			msg.Ack()

			env, err := queue.ParseObjectStored(msg)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}

			if env.Payload.Source != queue.SourceReconcile || msg.UUID != queue.ObjectMessageID(env.Payload.Object) {
				t.Fatalf("event=%+v uuid=%s", env, msg.UUID)
			}

			got[env.Payload.Object.ObjectKey] = env.Payload.Object.ETag
		case <-ctx.Done():
			t.Fatalf("only received %v", got)
		}
	}

	if got["alice/changed.png"] != "new" || got["bob/new.txt"] != "e9" {
		t.Fatalf("events=%v", got)
	}
}
