package handle_test

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yeisme/datanexus/pkg/configs"
	"github.com/yeisme/datanexus/pkg/internal/model"
	"github.com/yeisme/datanexus/pkg/internal/repo"
	"github.com/yeisme/datanexus/pkg/internal/router"
	"github.com/yeisme/datanexus/pkg/internal/service"
	"github.com/yeisme/datanexus/pkg/internal/storage"
	dbc "github.com/yeisme/datanexus/pkg/internal/storage/db"
	kvc "github.com/yeisme/datanexus/pkg/internal/storage/kv"
	"github.com/yeisme/datanexus/pkg/internal/types"
	"github.com/yeisme/datanexus/pkg/middleware"
)

type env struct {
	engine *gin.Engine
	repo   *repo.Submissions
}

func newEnv(t *testing.T, auth bool) *env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	cfg := configs.Defaults()
	cfg.Auth.Enabled = auth
	cfg.Auth.SkipPaths = nil
	cfg.Events.Enabled = false
	configs.SetConfig(cfg)

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:handle_%s?mode=memory&cache=shared", name)),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	if err := repo.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	store, err := kvc.NewMemoryKV(context.Background(), nil)
	if err != nil {
		t.Fatalf("kv: %v", err)
	}

	mgr := &storage.Manager{
		DB: &dbc.Client{DB: db},
		KV: &kvc.Client{KVStore: store},
	}

	e := gin.New()
	e.Use(
		middleware.AuthMiddleware(cfg.Auth),
		middleware.RoleMiddleware(),
		middleware.StorageMiddleware(mgr),
	)
	router.RegisterAPIRoutes(e.Group("/api/v1"), configs.GetConfig())

	return &env{engine: e, repo: repo.NewSubmissions(db)}
}

func (e *env) seed(t *testing.T, owner, id, category string, score int) {
	t.Helper()

	sub := &model.Submission{
		ID:              id,
		OwnerID:         owner,
		Bucket:          "uploads",
		ObjectKey:       owner + "/" + id,
		UploadedAt:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		ContentKind:     model.ContentKindImage,
		IsSafe:          true,
		ScoreStatus:     model.ScoreStatusScored,
		QualityScore:    score,
		EstimatedPayout: float64(score) / 10,
		MarketCategory:  category,
	}

	if err := e.repo.Upsert(context.Background(), sub); err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
}

func (e *env) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer

	if body != nil {
		b, err := sonic.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}

		buf.Write(b)
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)

	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	if err := sonic.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}

	return out
}

func TestPurchaseRoute(t *testing.T) {
	e := newEnv(t, false)
	e.seed(t, "alice", "a.png", model.CategoryGeneral, 90)
	e.seed(t, "bob", "b.png", model.CategoryGeneral, 10)

	w := e.do(t, http.MethodPost, "/api/v1/market/purchase", map[string]string{"category": "General", "agencyId": "agency-1"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	res := decode[types.PurchaseResponse](t, w)
	if res.Count != 2 || res.TotalCost != 50 {
		t.Fatalf("count/total = %d/%v, want 2/50", res.Count, res.TotalCost)
	}

	if res.Items[0].SoldPrice != 45 || res.Items[1].SoldPrice != 5 {
		t.Fatalf("prices = %v/%v, want 45/5", res.Items[0].SoldPrice, res.Items[1].SoldPrice)
	}

	if res.Items[0].Certificate.ResponsibleAICheck != "PASSED" || res.Items[0].Certificate.CertificateID == "" {
		t.Fatalf("certificate = %+v", res.Items[0].Certificate)
	}

	// 已全部售出
	w = e.do(t, http.MethodPost, "/api/v1/market/purchase", map[string]string{"category": "General"}, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("second purchase status = %d, want 404", w.Code)
	}

	if msg := decode[types.ErrorResponse](t, w).Message; msg != "No available datasets in this category." {
		t.Fatalf("message = %q", msg)
	}

	w = e.do(t, http.MethodGet, "/api/v1/agency/purchases?agencyId=agency-1", nil, nil)
	if rows := decode[[]types.AgencyPurchase](t, w); len(rows) != 2 {
		t.Fatalf("agency purchases = %d, want 2", len(rows))
	}
}

func TestPurchaseRejectsBadCategory(t *testing.T) {
	e := newEnv(t, false)

	cases := []struct {
		name string
		body map[string]string
		tag  string
	}{
		{"missing", map[string]string{"agencyId": "x"}, "required"},
		{"unknown", map[string]string{"category": "Space Mining"}, "market_category"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := e.do(t, http.MethodPost, "/api/v1/market/purchase", tc.body, nil)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}

			if got := decode[types.ErrorResponse](t, w).Fields["Category"]; got != tc.tag {
				t.Fatalf("field tag = %q, want %q", got, tc.tag)
			}
		})
	}
}

func TestDeleteSubmissionRoutes(t *testing.T) {
	e := newEnv(t, false)
	e.seed(t, "alice", "keep.png", model.CategoryGeneral, 50)
	e.seed(t, "alice", "sold.png", model.CategoryGeneral, 60)

	sold, err := e.repo.Get(context.Background(), "alice", "sold.png")
	if err != nil {
		t.Fatal(err)
	}

	if ok, err := e.repo.Claim(context.Background(), sold, "agency", "stl-1", time.Now()); err != nil || !ok {
		t.Fatalf("claim = %v, %v", ok, err)
	}

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		msg    string
	}{
		{"missing fields", http.MethodPost, "/api/v1/submissions/delete", map[string]string{"id": "keep.png"}, http.StatusBadRequest, "Missing id or userId"},
		{"sold", http.MethodPost, "/api/v1/submissions/delete", map[string]string{"id": "sold.png", "userId": "alice"}, http.StatusForbidden, "Cannot delete sold items."},
		{"other owner", http.MethodDelete, "/api/v1/submissions/keep.png?userId=bob", nil, http.StatusNotFound, "Item not found or access denied"},
		{"ok", http.MethodDelete, "/api/v1/submissions/keep.png?userId=alice", nil, http.StatusOK, service.MsgDeleted},
		{"gone", http.MethodPost, "/api/v1/submissions/delete", map[string]string{"id": "keep.png", "userId": "alice"}, http.StatusNotFound, "Item not found or access denied"},
	}

	for _, tc := range cases {
		w := e.do(t, tc.method, tc.path, tc.body, nil)
		if w.Code != tc.status {
			t.Fatalf("%s: status = %d, want %d (%s)", tc.name, w.Code, tc.status, w.Body.String())
		}

		if msg := decode[types.ErrorResponse](t, w).Message; msg != tc.msg {
			t.Fatalf("%s: message = %q, want %q", tc.name, msg, tc.msg)
		}
	}
}

func TestStatsAndSummaries(t *testing.T) {
	e := newEnv(t, false)

	w := e.do(t, http.MethodGet, "/api/v1/stats", nil, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("stats without user status = %d, want 400", w.Code)
	}

	w = e.do(t, http.MethodGet, "/api/v1/market/summaries", nil, nil)
	if s := decode[types.SummariesResponse](t, w); s.HasData || len(s.Categories) != 0 {
		t.Fatalf("empty summaries = %+v", s)
	}

	e.seed(t, "alice", "a.png", model.CategoryMedicalImaging, 40)

	w = e.do(t, http.MethodGet, "/api/v1/stats?userId=alice", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("stats status = %d", w.Code)
	}

	st := decode[types.StatsResponse](t, w)
	if st.TotalUploads != 1 || len(st.History) != 1 || st.History[0].Status != "Pending" {
		t.Fatalf("stats = %+v", st)
	}
}

func TestPurchaseRequiresAgencyRoleWhenAuthEnabled(t *testing.T) {
	e := newEnv(t, true)
	e.seed(t, "alice", "a.png", model.CategoryGeneral, 70)

	body := map[string]string{"category": "General"}

	if w := e.do(t, http.MethodPost, "/api/v1/market/purchase", body, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d, want 401", w.Code)
	}

	if w := e.do(t, http.MethodPost, "/api/v1/market/purchase", body, map[string]string{middleware.HeaderUser: "alice"}); w.Code != http.StatusForbidden {
		t.Fatalf("contributor status = %d, want 403", w.Code)
	}

	w := e.do(t, http.MethodPost, "/api/v1/market/purchase", body, map[string]string{middleware.HeaderUser: "buyer", "X-Role": "agency"})
	if w.Code != http.StatusOK {
		t.Fatalf("agency status = %d, want 200 (%s)", w.Code, w.Body.String())
	}
}
