package oracle_test

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/sony/gobreaker"

	"github.com/yeisme/datanexus/pkg/configs"
	"github.com/yeisme/datanexus/pkg/internal/oracle"
)

func endpoint(url string) configs.OracleEndpoint {
	return configs.OracleEndpoint{Endpoint: url, APIKey: "secret", Timeout: 2 * time.Second}
}

func TestContentSafety_CheckText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/contentsafety/text:analyze" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		if got := r.URL.Query().Get("api-version"); got != "2023-10-01" {
			t.Errorf("api-version=%q", got)
		}

		if got := r.Header.Get("Ocp-Apim-Subscription-Key"); got != "secret" {
			t.Errorf("key header=%q", got)
		}

		var in struct {
			Text string `json:"text"`
		}

		raw, _ := io.ReadAll(r.Body)
		if err := sonic.Unmarshal(raw, &in); err != nil || in.Text != "hello" {
			t.Errorf("body=%s err=%v", raw, err)
		}

		_, _ = io.WriteString(w, `{"categoriesAnalysis":[{"category":"Hate","severity":0},{"category":"Violence","severity":4}]}`)
	}))
	defer srv.Close()

	cs, err := oracle.NewContentSafety(configs.SafetyOracleConfig{
		OracleEndpoint: endpoint(srv.URL + "/"),
		APIVersion:     "2023-10-01",
	}, srv.Client())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	cats, err := cs.CheckText(context.Background(), "hello")
	if err != nil {
		t.Fatalf("check: %v", err)
	}

	if len(cats) != 2 || cats[1].Category != oracle.CategoryViolence || cats[1].Severity != 4 {
		t.Fatalf("unexpected categories: %+v", cats)
	}
}

func TestContentSafety_CheckImageEncodesBase64(t *testing.T) {
	img := []byte{0x89, 'P', 'N', 'G'}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Image struct {
				Content string `json:"content"`
			} `json:"image"`
		}

		raw, _ := io.ReadAll(r.Body)
		_ = sonic.Unmarshal(raw, &in)

		if in.Image.Content != base64.StdEncoding.EncodeToString(img) {
			t.Errorf("content=%q", in.Image.Content)
		}

		_, _ = io.WriteString(w, `{"categoriesAnalysis":[]}`)
	}))
	defer srv.Close()

	cs, err := oracle.NewContentSafety(configs.SafetyOracleConfig{OracleEndpoint: endpoint(srv.URL)}, srv.Client())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if _, err := cs.CheckImage(context.Background(), img); err != nil {
		t.Fatalf("check image: %v", err)
	}
}

func TestContentSafety_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, "slow down")
	}))
	defer srv.Close()

	cs, _ := oracle.NewContentSafety(configs.SafetyOracleConfig{OracleEndpoint: endpoint(srv.URL)}, srv.Client())

	_, err := cs.CheckText(context.Background(), "x")

	var he *oracle.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected HTTPError, got %v", err)
	}

	if he.StatusCode != http.StatusTooManyRequests || he.Body != "slow down" {
		t.Fatalf("unexpected error: %+v", he)
	}
}

func TestImageAnalysis_TagImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("features"); got != "tags,caption" {
			t.Errorf("features=%q", got)
		}

		if ct := r.Header.Get("Content-Type"); ct != "application/octet-stream" {
			t.Errorf("content type=%q", ct)
		}

		_, _ = io.WriteString(w, `{"captionResult":{"text":"a car on a road","confidence":0.91},`+
			`"tagsResult":{"values":[{"name":"car","confidence":0.99},{"name":"road","confidence":0.9}]}}`)
	}))
	defer srv.Close()

	v, err := oracle.NewImageAnalysis(configs.VisionOracleConfig{OracleEndpoint: endpoint(srv.URL)}, srv.Client())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	res, err := v.TagImage(context.Background(), []byte("img"))
	if err != nil {
		t.Fatalf("tag: %v", err)
	}

	if strings.Join(res.Tags, ",") != "car,road" || res.Caption != "a car on a road" || res.Confidence != 0.91 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestImageAnalysis_NoCaption(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"tagsResult":{"values":[]}}`)
	}))
	defer srv.Close()

	v, _ := oracle.NewImageAnalysis(configs.VisionOracleConfig{OracleEndpoint: endpoint(srv.URL)}, srv.Client())

	res, err := v.TagImage(context.Background(), []byte("img"))
	if err != nil {
		t.Fatalf("tag: %v", err)
	}

	if res.Caption != "No caption generated." || len(res.Tags) != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func chatServer(t *testing.T, answer string, check func(body string)) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/openai/deployments/gpt-4o/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		if r.Header.Get("api-key") != "secret" {
			t.Errorf("missing api-key header")
		}

		raw, _ := io.ReadAll(r.Body)
		if check != nil {
			check(string(raw))
		}

		resp := map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": answer}}},
		}
		out, _ := sonic.Marshal(resp)
		_, _ = w.Write(out)
	}))
}

func newChat(t *testing.T, srv *httptest.Server) *oracle.ChatCompletions {
	t.Helper()

	chat, err := oracle.NewChatCompletions(configs.LLMOracleConfig{
		OracleEndpoint: endpoint(srv.URL),
		Deployment:     "gpt-4o",
		APIVersion:     configs.DefaultOracleAPIVersion,
	}, srv.Client())
	if err != nil {
		t.Fatalf("new chat: %v", err)
	}

	return chat
}

func TestChat_ScoreText(t *testing.T) {
	srv := chatServer(t, `{"trust_score": 87, "summary": "A tokenizer", "reasoning": "clean"}`, func(body string) {
		if !strings.Contains(body, "json_object") {
			t.Errorf("response_format not requested: %s", body)
		}

		if !strings.Contains(body, "lexer.py") {
			t.Errorf("file name missing from prompt")
		}
	})
	defer srv.Close()

	score, err := newChat(t, srv).ScoreText(context.Background(), "lexer.py", "def lex(): pass")
	if err != nil {
		t.Fatalf("score: %v", err)
	}

	if score.TrustScore != 87 || score.Summary != "A tokenizer" || score.Reasoning != "clean" {
		t.Fatalf("unexpected score: %+v", score)
	}
}

func TestParseTextScore(t *testing.T) {
	score, err := oracle.ParseTextScore(`{"summary":"s"}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if score.TrustScore != 50 {
		t.Fatalf("missing trust_score should default to 50, got %d", score.TrustScore)
	}

	if _, err := oracle.ParseTextScore("not json"); !errors.Is(err, oracle.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestChat_ClassifyAndJudge(t *testing.T) {
	srv := chatServer(t, "  Developer Tools\n", nil)
	defer srv.Close()

	chat := newChat(t, srv)

	got, err := chat.Classify(context.Background(), "Code/Text file named a.go. Summary: x")
	if err != nil || got != "Developer Tools" {
		t.Fatalf("classify=%q err=%v", got, err)
	}

	got, err = chat.Judge(context.Background(), "a go file", "x")
	if err != nil || got != "Developer Tools" {
		t.Fatalf("judge=%q err=%v", got, err)
	}
}

func TestNewSet_Unconfigured(t *testing.T) {
	set, err := oracle.NewSet(configs.OracleConfig{}, nil)
	if err != nil {
		t.Fatalf("new set: %v", err)
	}

	if set.Moderator != nil || set.Vision != nil || set.TextScorer != nil || len(set.Configured()) != 0 {
		t.Fatalf("expected empty set, got %+v", set)
	}
}

type failingVision struct{ calls atomic.Int32 }

func (f *failingVision) TagImage(context.Context, []byte) (oracle.VisionResult, error) {
	f.calls.Add(1)
	return oracle.VisionResult{}, errors.New("boom")
}

func TestGuard_OpensAfterConsecutiveFailures(t *testing.T) {
	inner := &failingVision{}
	g := oracle.NewGuard("vision", configs.OracleEndpoint{}, configs.OracleBreakerConfig{
		MaxRequests:         1,
		Timeout:             time.Minute,
		ConsecutiveFailures: 2,
	})
	v := oracle.GuardVision(inner, g)

	for range 2 {
		if _, err := v.TagImage(context.Background(), nil); err == nil {
			t.Fatal("expected error")
		}
	}

	_, err := v.TagImage(context.Background(), nil)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open breaker, got %v", err)
	}

	if inner.calls.Load() != 2 {
		t.Fatalf("inner should not be called while open, calls=%d", inner.calls.Load())
	}

	if g.State() != gobreaker.StateOpen {
		t.Fatalf("state=%v", g.State())
	}
}
