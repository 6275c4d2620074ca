package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alfredjeanlab/kvcomments/internal/comments"
	"github.com/alfredjeanlab/kvcomments/internal/events"
	"github.com/alfredjeanlab/kvcomments/internal/model"
	"github.com/alfredjeanlab/kvcomments/internal/store/memory"
)

var testNow = time.Date(2024, 3, 9, 12, 30, 0, 0, time.UTC)

type publishedEvent struct {
	topic string
	event any
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, publishedEvent{topic, event})
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) published() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedEvent(nil), p.events...)
}

type testEnv struct {
	server  *CommentServer
	store   *memory.MemoryStore
	pub     *recordingPublisher
	metrics *Metrics
	handler http.Handler
}

func newTestServer(t *testing.T, opts Options) *testEnv {
	t.Helper()
	st := memory.New(0)
	copts := comments.DefaultOptions()
	copts.Location = time.UTC
	copts.Now = func() time.Time { return testNow }
	a := comments.New(st, copts)

	pub := &recordingPublisher{}
	m := NewMetrics()
	h := NewHealthChecker(a, nil, m, time.Minute, discardLogger())
	if opts.Namespace == "" {
		opts.Namespace = "birthday-comment-kv"
	}
	s := NewCommentServer(a, pub, m, h, opts, discardLogger())
	return &testEnv{server: s, store: st, pub: pub, metrics: m, handler: s.NewHTTPHandler()}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// doJSON performs an HTTP request with an optional JSON body and returns the recorder.
func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		b, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

// requireStatus asserts the recorder has the expected HTTP status code.
func requireStatus(t *testing.T, rec *httptest.ResponseRecorder, code int) {
	t.Helper()
	if rec.Code != code {
		t.Fatalf("expected status %d, got %d; body: %s", code, rec.Code, rec.Body.String())
	}
}

type testEnvelope struct {
	Code    int             `json:"code"`
	Msg     string          `json:"msg"`
	Data    []model.Comment `json:"data"`
	Comment *model.Comment  `json:"comment"`
}

// decodeEnvelope decodes the recorder's response body as a response envelope.
func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) testEnvelope {
	t.Helper()
	var env testEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return env
}

func listComments(t *testing.T, h http.Handler) []model.Comment {
	t.Helper()
	rec := doJSON(t, h, "GET", "/api/comments", nil)
	requireStatus(t, rec, 200)
	return decodeEnvelope(t, rec).Data
}

func TestPreflight(t *testing.T) {
	env := newTestServer(t, Options{AuthToken: "secret"})
	for _, path := range []string{"/api/comments", "/api/comments/42", "/", "/anything/else?action=bogus"} {
		rec := doJSON(t, env.handler, "OPTIONS", path, nil)
		requireStatus(t, rec, http.StatusNoContent)
		if rec.Body.Len() != 0 {
			t.Errorf("OPTIONS %s: expected empty body, got %q", path, rec.Body.String())
		}
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
			t.Errorf("OPTIONS %s: Allow-Origin = %q", path, got)
		}
		if got := rec.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, "DELETE") {
			t.Errorf("OPTIONS %s: Allow-Methods = %q", path, got)
		}
	}
}

func TestCORSHeadersOnEveryResponse(t *testing.T) {
	env := newTestServer(t, Options{AllowOrigin: "https://example.com"})
	rec := doJSON(t, env.handler, "GET", "/nowhere", nil)
	requireStatus(t, rec, 404)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://example.com" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if got := rec.Header().Get("Vary"); got != "Origin" {
		t.Errorf("Vary = %q, want Origin", got)
	}
}

func TestListEmpty(t *testing.T) {
	env := newTestServer(t, Options{})
	rec := doJSON(t, env.handler, "GET", "/api/comments", nil)
	requireStatus(t, rec, 200)
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), `"data":[]`) {
		t.Errorf("expected an empty data array, got %s", rec.Body.String())
	}
	env2 := decodeEnvelope(t, rec)
	if env2.Code != 200 {
		t.Errorf("code = %d, want 200", env2.Code)
	}
}

func TestAppendAndList(t *testing.T) {
	env := newTestServer(t, Options{})

	rec := doJSON(t, env.handler, "POST", "/api/comments", map[string]any{"content": "  happy birthday  "})
	requireStatus(t, rec, 200)
	got := decodeEnvelope(t, rec)
	if got.Code != 200 || got.Comment == nil {
		t.Fatalf("unexpected envelope: %+v", got)
	}
	if got.Comment.Content != "happy birthday" {
		t.Errorf("content = %q, want trimmed", got.Comment.Content)
	}
	if got.Comment.ID != "1709987400000" {
		t.Errorf("id = %q, want epoch millis", got.Comment.ID)
	}
	if got.Comment.Time != model.DisplayTime("2024/03/09 12:30") {
		t.Errorf("time = %+v", got.Comment.Time)
	}

	// Same clock: the second id is bumped to stay unique.
	rec = doJSON(t, env.handler, "GET", "/?action=set&content=second", nil)
	requireStatus(t, rec, 200)
	second := decodeEnvelope(t, rec).Comment
	if second.ID != "1709987400001" {
		t.Errorf("second id = %q", second.ID)
	}

	list := listComments(t, env.handler)
	if len(list) != 2 || list[0].Content != "second" || list[1].Content != "happy birthday" {
		t.Fatalf("expected newest first, got %+v", list)
	}
}

func TestAppendInputForms(t *testing.T) {
	for _, tc := range []struct {
		name   string
		method string
		target string
		body   string
		want   string
		time   model.CommentTime
	}{
		{"JSONContent", "POST", "/api/comments", `{"content":"a"}`, "a", model.DisplayTime("2024/03/09 12:30")},
		{"JSONValue", "POST", "/api/comments", `{"value":"b"}`, "b", model.DisplayTime("2024/03/09 12:30")},
		{"JSONEpochTime", "POST", "/api/comments", `{"content":"c","time":1700000000000}`, "c", model.EpochTime(1700000000000)},
		{"JSONDisplayTime", "POST", "/api/comments", `{"content":"d","time":"2023/01/01 08:00"}`, "d", model.DisplayTime("2023/01/01 08:00")},
		{"QueryContent", "GET", "/?action=submitComment&content=e", "", "e", model.DisplayTime("2024/03/09 12:30")},
		{"QueryValue", "GET", "/?action=set&value=f", "", "f", model.DisplayTime("2024/03/09 12:30")},
		{"QueryEpochTime", "GET", "/?action=set&content=g&time=1700000000000", "", "g", model.EpochTime(1700000000000)},
		{"QueryDisplayTime", "GET", "/?action=set&content=h&time=yesterday", "", "h", model.DisplayTime("yesterday")},
	} {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestServer(t, Options{})
			req := httptest.NewRequest(tc.method, tc.target, strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			env.handler.ServeHTTP(rec, req)
			requireStatus(t, rec, 200)
			c := decodeEnvelope(t, rec).Comment
			if c.Content != tc.want {
				t.Errorf("content = %q, want %q", c.Content, tc.want)
			}
			if c.Time != tc.time {
				t.Errorf("time = %+v, want %+v", c.Time, tc.time)
			}
		})
	}
}

func TestAppendRejectsInvalidContent(t *testing.T) {
	for _, tc := range []struct {
		name string
		body any
	}{
		{"Missing", map[string]any{}},
		{"Empty", map[string]any{"content": ""}},
		{"Whitespace", map[string]any{"content": " \n\t "}},
		{"TooLarge", map[string]any{"content": strings.Repeat("x", model.DefaultMaxContentBytes+1)}},
		{"TooLargeOnceEscaped", map[string]any{"content": strings.Repeat(`"`, 1<<20)}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestServer(t, Options{})
			rec := doJSON(t, env.handler, "POST", "/api/comments", tc.body)
			requireStatus(t, rec, 400)
			got := decodeEnvelope(t, rec)
			if got.Code != 400 || !strings.Contains(got.Msg, "content") {
				t.Errorf("unexpected envelope: %+v", got)
			}
			if n := len(listComments(t, env.handler)); n != 0 {
				t.Errorf("list length = %d, want unchanged 0", n)
			}
			if len(env.pub.published()) != 0 {
				t.Error("no event should be published for a rejected comment")
			}
		})
	}
}

func TestAppendInvalidJSON(t *testing.T) {
	env := newTestServer(t, Options{})
	req := httptest.NewRequest("POST", "/api/comments", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	requireStatus(t, rec, 400)
	if got := decodeEnvelope(t, rec); got.Msg != "invalid JSON body" {
		t.Errorf("msg = %q", got.Msg)
	}
}

func TestAppendBodyTooLarge(t *testing.T) {
	for _, tc := range []struct {
		name  string
		opts  Options
		bytes int
	}{
		{"Configured", Options{MaxBodyBytes: 64}, 100},
		{"Default", Options{}, 5 << 20},
	} {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestServer(t, tc.opts)
			rec := doJSON(t, env.handler, "POST", "/api/comments", map[string]any{"content": strings.Repeat("x", tc.bytes)})
			requireStatus(t, rec, http.StatusBadRequest)
			got := decodeEnvelope(t, rec)
			if got.Code != 400 || !strings.Contains(got.Msg, "content") {
				t.Errorf("unexpected envelope: %+v", got)
			}
			if n := len(listComments(t, env.handler)); n != 0 {
				t.Errorf("list length = %d, want unchanged 0", n)
			}
		})
	}
}

func TestAppendAtContentCap(t *testing.T) {
	env := newTestServer(t, Options{})
	content := strings.Repeat("x", model.DefaultMaxContentBytes)
	rec := doJSON(t, env.handler, "POST", "/api/comments", map[string]any{"content": content})
	requireStatus(t, rec, 200)

	list := listComments(t, env.handler)
	if len(list) != 1 || list[0].Content != content {
		t.Fatalf("list length = %d, want one comment holding the full content", len(list))
	}
}

func TestAppendOverListSizeKeepsExistingComments(t *testing.T) {
	env := newTestServer(t, Options{})
	big := 700 * 1024
	for i, ch := range []string{"a", "b"} {
		rec := doJSON(t, env.handler, "POST", "/api/comments", map[string]any{"content": strings.Repeat(ch, big)})
		requireStatus(t, rec, 200)
		if n := len(listComments(t, env.handler)); n != i+1 {
			t.Fatalf("after append %d list length = %d", i, n)
		}
	}

	rec := doJSON(t, env.handler, "POST", "/api/comments", map[string]any{"content": strings.Repeat("c", big)})
	requireStatus(t, rec, 500)
	if got := decodeEnvelope(t, rec); got.Code != 500 {
		t.Errorf("unexpected envelope: %+v", got)
	}

	list := listComments(t, env.handler)
	if len(list) != 2 || list[0].Content[0] != 'b' || list[1].Content[0] != 'a' {
		t.Errorf("stored list changed: %d comments", len(list))
	}
	if n := len(env.pub.published()); n != 2 {
		t.Errorf("published %d events, want 2", n)
	}
}

func TestAppendHTMLNotEscaped(t *testing.T) {
	env := newTestServer(t, Options{})
	rec := doJSON(t, env.handler, "POST", "/api/comments", map[string]any{"content": "<b>hi</b> & bye"})
	requireStatus(t, rec, 200)
	if !strings.Contains(rec.Body.String(), "<b>hi</b> & bye") {
		t.Errorf("expected raw HTML in response, got %s", rec.Body.String())
	}
}

func TestDelete(t *testing.T) {
	for _, tc := range []struct {
		name   string
		method string
		target string
		body   any
	}{
		{"Path", "DELETE", "/api/comments/1709987400000", nil},
		{"ActionID", "GET", "/api/comments?action=delete&id=1709987400000", nil},
		{"ActionKey", "GET", "/?action=deleteComment&key=1709987400000", nil},
		{"BodyID", "POST", "/?action=delete", map[string]any{"id": "1709987400000"}},
		{"BodyKey", "POST", "/?action=delete", map[string]any{"key": "1709987400000"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestServer(t, Options{})
			requireStatus(t, doJSON(t, env.handler, "POST", "/api/comments", map[string]any{"content": "first"}), 200)
			requireStatus(t, doJSON(t, env.handler, "POST", "/api/comments", map[string]any{"content": "second"}), 200)

			rec := doJSON(t, env.handler, tc.method, tc.target, tc.body)
			requireStatus(t, rec, 200)
			if got := decodeEnvelope(t, rec); got.Code != 200 {
				t.Errorf("code = %d", got.Code)
			}

			list := listComments(t, env.handler)
			if len(list) != 1 || list[0].Content != "second" {
				t.Fatalf("unexpected list after delete: %+v", list)
			}
		})
	}
}

func TestDeleteErrors(t *testing.T) {
	for _, tc := range []struct {
		name   string
		method string
		target string
		code   int
	}{
		{"UnknownID", "DELETE", "/api/comments/nope", 404},
		{"MissingID", "GET", "/?action=delete", 400},
	} {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestServer(t, Options{})
			requireStatus(t, doJSON(t, env.handler, "POST", "/api/comments", map[string]any{"content": "keep"}), 200)

			rec := doJSON(t, env.handler, tc.method, tc.target, nil)
			requireStatus(t, rec, tc.code)
			if got := decodeEnvelope(t, rec); got.Code != tc.code || got.Msg == "" {
				t.Errorf("unexpected envelope: %+v", got)
			}
			if n := len(listComments(t, env.handler)); n != 1 {
				t.Errorf("list length = %d, want 1", n)
			}
		})
	}
}

func TestInvalidOperation(t *testing.T) {
	env := newTestServer(t, Options{})
	for _, target := range []string{"/?action=drop", "/", "/?action=kvGet&key=comment_list"} {
		rec := doJSON(t, env.handler, "GET", target, nil)
		requireStatus(t, rec, 400)
		got := decodeEnvelope(t, rec)
		if got.Code != 400 || !strings.HasPrefix(got.Msg, "invalid operation") {
			t.Errorf("%s: unexpected envelope %+v", target, got)
		}
		if strings.Contains(got.Msg, "kvGet") {
			t.Errorf("%s: usage should not advertise disabled probes: %q", target, got.Msg)
		}
	}

	rec := doJSON(t, env.handler, "PUT", "/api/comments", nil)
	requireStatus(t, rec, 400)
}

func TestRouteNotFound(t *testing.T) {
	env := newTestServer(t, Options{})
	rec := doJSON(t, env.handler, "GET", "/favicon.ico", nil)
	requireStatus(t, rec, 404)
	if got := decodeEnvelope(t, rec); got.Code != 404 || !strings.Contains(got.Msg, "/favicon.ico") {
		t.Errorf("unexpected envelope: %+v", got)
	}
}

func TestCustomBasePath(t *testing.T) {
	env := newTestServer(t, Options{BasePath: "/guestbook"})
	requireStatus(t, doJSON(t, env.handler, "POST", "/guestbook", map[string]any{"content": "hi"}), 200)
	requireStatus(t, doJSON(t, env.handler, "GET", "/guestbook", nil), 200)
	requireStatus(t, doJSON(t, env.handler, "GET", "/api/comments", nil), 404)
	requireStatus(t, doJSON(t, env.handler, "DELETE", "/guestbook/1709987400000", nil), 200)
}

func TestProbes(t *testing.T) {
	env := newTestServer(t, Options{ProbesEnabled: true})

	rec := doJSON(t, env.handler, "GET", "/?action=kvGet&key=greeting", nil)
	requireStatus(t, rec, 404)
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q", ct)
	}

	rec = doJSON(t, env.handler, "GET", "/?action=kvSet&key=greeting&value=hello", nil)
	requireStatus(t, rec, 200)
	if got := rec.Body.String(); got != "set greeting (5 bytes)\n" {
		t.Errorf("set body = %q", got)
	}

	rec = doJSON(t, env.handler, "GET", "/?action=kvGet&key=greeting", nil)
	requireStatus(t, rec, 200)
	if got := rec.Body.String(); got != "hello" {
		t.Errorf("get body = %q", got)
	}

	req := httptest.NewRequest("POST", "/?action=kvSet&key=greeting", strings.NewReader("from body"))
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	requireStatus(t, rec, 200)
	e, err := env.store.Get(context.Background(), "greeting")
	if err != nil || string(e.Value) != "from body" {
		t.Fatalf("stored value = %v, %v", e, err)
	}

	rec = doJSON(t, env.handler, "GET", "/?action=kvDelete&key=greeting", nil)
	requireStatus(t, rec, 200)
	rec = doJSON(t, env.handler, "GET", "/?action=kvDelete&key=greeting", nil)
	requireStatus(t, rec, 404)

	rec = doJSON(t, env.handler, "GET", "/?action=kvGet", nil)
	requireStatus(t, rec, 400)
}

func TestProbeReadsCommentList(t *testing.T) {
	env := newTestServer(t, Options{ProbesEnabled: true})
	requireStatus(t, doJSON(t, env.handler, "POST", "/api/comments", map[string]any{"content": "hi"}), 200)

	rec := doJSON(t, env.handler, "GET", "/?action=kvGet&key=comment_list", nil)
	requireStatus(t, rec, 200)
	var list []model.Comment
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("stored value is not a JSON list: %v", err)
	}
	if len(list) != 1 || list[0].Content != "hi" {
		t.Errorf("unexpected stored list: %+v", list)
	}
}

func TestAuth(t *testing.T) {
	env := newTestServer(t, Options{AuthToken: "secret", ProbesEnabled: true})

	// Listing and posting stay public.
	requireStatus(t, doJSON(t, env.handler, "GET", "/api/comments", nil), 200)
	requireStatus(t, doJSON(t, env.handler, "POST", "/api/comments", map[string]any{"content": "hi"}), 200)

	for _, target := range []string{"/?action=kvGet&key=comment_list", "/?action=delete&id=1709987400000"} {
		rec := doJSON(t, env.handler, "GET", target, nil)
		requireStatus(t, rec, 401)
	}
	requireStatus(t, doJSON(t, env.handler, "DELETE", "/api/comments/1709987400000", nil), 401)

	req := httptest.NewRequest("DELETE", "/api/comments/1709987400000", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	requireStatus(t, rec, 401)

	req = httptest.NewRequest("DELETE", "/api/comments/1709987400000", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	requireStatus(t, rec, 200)
}

func TestEventsPublished(t *testing.T) {
	env := newTestServer(t, Options{})
	requireStatus(t, doJSON(t, env.handler, "POST", "/api/comments", map[string]any{"content": "hi"}), 200)
	requireStatus(t, doJSON(t, env.handler, "DELETE", "/api/comments/1709987400000", nil), 200)
	requireStatus(t, doJSON(t, env.handler, "DELETE", "/api/comments/1709987400000", nil), 404)

	got := env.pub.published()
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	added, ok := got[0].event.(events.CommentAdded)
	if got[0].topic != events.TopicCommentAdded || !ok || added.Comment.Content != "hi" || added.Namespace != "birthday-comment-kv" {
		t.Errorf("unexpected first event: %+v", got[0])
	}
	deleted, ok := got[1].event.(events.CommentDeleted)
	if got[1].topic != events.TopicCommentDeleted || !ok || deleted.ID != "1709987400000" {
		t.Errorf("unexpected second event: %+v", got[1])
	}
}

func TestPublishFailureDoesNotFailRequest(t *testing.T) {
	env := newTestServer(t, Options{})
	env.pub.err = errors.New("nats down")
	requireStatus(t, doJSON(t, env.handler, "POST", "/api/comments", map[string]any{"content": "hi"}), 200)
	if n := len(listComments(t, env.handler)); n != 1 {
		t.Errorf("list length = %d, want 1", n)
	}
}

func TestMalformedStoredListIsServerError(t *testing.T) {
	env := newTestServer(t, Options{})
	if _, err := env.store.Put(context.Background(), "comment_list", []byte("{broken")); err != nil {
		t.Fatal(err)
	}
	rec := doJSON(t, env.handler, "GET", "/api/comments", nil)
	requireStatus(t, rec, 500)
	if got := decodeEnvelope(t, rec); got.Code != 500 {
		t.Errorf("code = %d", got.Code)
	}

	rec = doJSON(t, env.handler, "GET", "/healthz", nil)
	requireStatus(t, rec, http.StatusServiceUnavailable)
}

func TestHealthz(t *testing.T) {
	env := newTestServer(t, Options{})
	rec := doJSON(t, env.handler, "GET", "/healthz", nil)
	requireStatus(t, rec, 200)
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q", body["status"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestServer(t, Options{})
	requireStatus(t, doJSON(t, env.handler, "POST", "/api/comments", map[string]any{"content": "hi"}), 200)
	requireStatus(t, doJSON(t, env.handler, "GET", "/api/comments", nil), 200)

	rec := doJSON(t, env.handler, "GET", "/metrics", nil)
	requireStatus(t, rec, 200)
	body := rec.Body.String()
	for _, want := range []string{
		`kvcomments_http_requests_total{code="200",operation="append"} 1`,
		`kvcomments_http_requests_total{code="200",operation="list"} 1`,
		`kvcomments_list_length 1`,
		`kvcomments_http_request_duration_seconds_count{operation="list"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	h := RecoveryMiddleware(discardLogger(), http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := doJSON(t, h, "GET", "/api/comments", nil)
	requireStatus(t, rec, 500)
	if got := decodeEnvelope(t, rec); got.Code != 500 || got.Msg != "internal server error" {
		t.Errorf("unexpected envelope: %+v", got)
	}
}

func TestStatusFor(t *testing.T) {
	for _, tc := range []struct {
		name string
		err  error
		want int
	}{
		{"Validation", model.NewValidationError("content", "is required"), 400},
		{"Input", inputError("bad"), 400},
		{"TooLarge", &http.MaxBytesError{Limit: 1}, 413},
		{"NotFound", comments.ErrCommentNotFound, 404},
		{"Store", &comments.StoreError{Op: "get", Key: "k", Err: errors.New("down")}, 500},
		{"Decode", &comments.DecodeError{Key: "k", Err: errors.New("bad json")}, 500},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := statusFor(tc.err); got != tc.want {
				t.Errorf("statusFor = %d, want %d", got, tc.want)
			}
		})
	}
}
