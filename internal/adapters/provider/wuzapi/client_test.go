package wuzapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"wa-gateway/internal/adapters/provider/upstream"
	"wa-gateway/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	Method string
	Path   string
	Token  string
	Auth   string
	Body   map[string]any
}

type reply struct {
	status int
	body   string
}

type stub struct {
	mu      sync.Mutex
	calls   []recorded
	replies map[string]reply
}

func (s *stub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)

	s.mu.Lock()
	s.calls = append(s.calls, recorded{
		Method: r.Method,
		Path:   r.URL.Path,
		Token:  r.Header.Get("token"),
		Auth:   r.Header.Get("Authorization"),
		Body:   body,
	})
	s.mu.Unlock()

	rep, ok := s.replies[r.Method+" "+r.URL.Path]
	if !ok {
		rep = reply{200, `{"code":200,"success":true}`}
	}
	w.WriteHeader(rep.status)
	w.Write([]byte(rep.body))
}

func (s *stub) paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.calls))
	for _, c := range s.calls {
		out = append(out, c.Method+" "+c.Path)
	}
	return out
}

// fakeStore returns codes[i] on the i-th lookup and "" once they run out.
type fakeStore struct {
	mu     sync.Mutex
	codes  []string
	tokens []string
	err    error
}

func (f *fakeStore) QRCode(_ context.Context, token string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, token)
	if f.err != nil {
		return "", f.err
	}
	if len(f.codes) == 0 {
		return "", nil
	}
	code := f.codes[0]
	f.codes = f.codes[1:]
	return code, nil
}

func (f *fakeStore) lookups() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tokens)
}

func newClient(t *testing.T, replies map[string]reply, store *fakeStore) (*Client, *stub) {
	t.Helper()
	s := &stub{replies: replies}
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	var c *Client
	if store != nil {
		c = New(srv.URL, "admin", store, upstream.New(log), log)
	} else {
		c = New(srv.URL, "admin", nil, upstream.New(log), log)
	}
	return c.WithQRDelays(time.Millisecond, time.Millisecond), s
}

func TestCreateFullFlowRecoversQR(t *testing.T) {
	store := &fakeStore{codes: []string{"", "Q"}}
	c, s := newClient(t, map[string]reply{
		"POST /admin/users": {201, `{"code":201,"data":{"id":"u1"},"success":true}`},
		"GET /session/qr":   {200, `{"code":200,"data":{"QRCode":null},"success":true}`},
	}, store)
	c.WithQRDelays(500*time.Millisecond, 1500*time.Millisecond)

	start := time.Now()
	out := c.Create(context.Background(), "tok", "inst", "https://hook", "http://p:1")
	elapsed := time.Since(start)

	require.True(t, out.IsOK())
	assert.Equal(t, "Q", out.Body["data"].(map[string]any)["QRCode"])
	assert.GreaterOrEqual(t, elapsed, 2000*time.Millisecond)
	assert.Equal(t, 2, store.lookups())
	assert.Equal(t, []string{"POST /admin/users", "POST /session/connect", "GET /session/qr"}, s.paths())

	create := s.calls[0]
	assert.Equal(t, "admin", create.Auth)
	assert.Equal(t, map[string]any{
		"name":        "inst",
		"token":       "tok",
		"webhook":     "https://hook",
		"events":      "All",
		"proxyConfig": map[string]any{"enabled": true, "proxyURL": "http://p:1"},
	}, create.Body)

	connect := s.calls[1]
	assert.Equal(t, "tok", connect.Token)
	assert.Equal(t, map[string]any{
		"Subscribe": []any{"Message", "ReadReceipt", "Presence", "HistorySync", "ChatPresence"},
		"Immediate": true,
	}, connect.Body)
}

func TestCreateMinimalBody(t *testing.T) {
	c, s := newClient(t, map[string]reply{
		"GET /session/qr": {200, `{"data":{"QRCode":"data:image/png;base64,QR"}}`},
	}, nil)

	out := c.Create(context.Background(), "tok", "inst", "", "")
	require.True(t, out.IsOK())
	assert.Equal(t, map[string]any{"name": "inst", "token": "tok"}, s.calls[0].Body)
}

func TestCreateStopsOnUpstreamError(t *testing.T) {
	c, s := newClient(t, map[string]reply{
		"POST /admin/users": {409, `{"error":"user already exists"}`},
	}, nil)

	out := c.Create(context.Background(), "tok", "inst", "", "")
	assert.False(t, out.IsOK())
	assert.Equal(t, "user already exists", out.ErrorText())
	assert.Equal(t, []string{"POST /admin/users"}, s.paths())
}

func TestCreateStopsOnConnectError(t *testing.T) {
	c, s := newClient(t, map[string]reply{
		"POST /session/connect": {500, `{"code":500}`},
	}, nil)

	out := c.Create(context.Background(), "tok", "inst", "", "")
	assert.False(t, out.IsOK())
	assert.Equal(t, "server returned HTTP error code", out.ErrorText())
	assert.Equal(t, []string{"POST /admin/users", "POST /session/connect"}, s.paths())
}

func TestCreateValidatesBeforeNetwork(t *testing.T) {
	c, s := newClient(t, nil, nil)
	ctx := context.Background()

	assert.Equal(t, "Invalid instance token: inst_token is empty", c.Create(ctx, "", "n", "", "").ErrorText())
	assert.Equal(t, "Invalid instance name: inst_name is empty", c.Create(ctx, "t", "", "", "").ErrorText())

	noAdmin := New(c.baseURL, "", nil, c.up, c.log)
	assert.Equal(t, "Invalid admin token: wuz_admin_token is empty", noAdmin.Create(ctx, "t", "n", "", "").ErrorText())

	noURL := New("", "admin", nil, c.up, c.log)
	assert.Equal(t, "Invalid API URL: url is empty", noURL.Create(ctx, "t", "n", "", "").ErrorText())

	assert.Empty(t, s.paths())
}

func TestGetQRCodePresentSkipsStore(t *testing.T) {
	store := &fakeStore{codes: []string{"DB"}}
	c, _ := newClient(t, map[string]reply{
		"GET /session/qr": {200, `{"data":{"QRCode":"API"}}`},
	}, store)

	out := c.GetQRCode(context.Background(), domain.Instance{ID: "tok"})
	require.True(t, out.IsOK())
	assert.Equal(t, "API", out.Body["data"].(map[string]any)["QRCode"])
	assert.Zero(t, store.lookups())
}

func TestGetQRCodeFirstPollHits(t *testing.T) {
	store := &fakeStore{codes: []string{"Q1"}}
	c, _ := newClient(t, map[string]reply{
		"GET /session/qr": {200, `{"data":{"QRCode":""}}`},
	}, store)

	out := c.GetQRCode(context.Background(), domain.Instance{ID: "id", AccessToken: domain.StringPtr("tok")})
	assert.Equal(t, "Q1", out.Body["data"].(map[string]any)["QRCode"])
	assert.Equal(t, 1, store.lookups())
	assert.Equal(t, []string{"tok"}, store.tokens)
}

func TestGetQRCodeCreatesDataObject(t *testing.T) {
	store := &fakeStore{codes: []string{"Q"}}
	c, _ := newClient(t, map[string]reply{
		"GET /session/qr": {200, `{"success":true}`},
	}, store)

	out := c.GetQRCode(context.Background(), domain.Instance{ID: "tok"})
	assert.Equal(t, map[string]any{"success": true, "data": map[string]any{"QRCode": "Q"}}, out.Body)
}

func TestGetQRCodeNotRecoveredReturnsUpstreamBody(t *testing.T) {
	store := &fakeStore{err: errors.New("connection refused")}
	c, _ := newClient(t, map[string]reply{
		"GET /session/qr": {200, `{"data":{"QRCode":null}}`},
	}, store)

	out := c.GetQRCode(context.Background(), domain.Instance{ID: "tok"})
	require.True(t, out.IsOK())
	assert.Equal(t, map[string]any{"data": map[string]any{"QRCode": nil}}, out.Body)
	assert.Equal(t, 2, store.lookups())
}

func TestQRRecoveryLogsNameNotToken(t *testing.T) {
	srv := httptest.NewServer(&stub{replies: map[string]reply{
		"GET /session/qr": {200, `{"data":{"QRCode":""}}`},
	}})
	t.Cleanup(srv.Close)

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	store := &fakeStore{err: errors.New("connection refused")}
	c := New(srv.URL, "admin", store, upstream.New(log), log).WithQRDelays(time.Millisecond, time.Millisecond)

	out := c.GetQRCode(context.Background(), domain.Instance{ID: "w1", Name: "suporte", AccessToken: domain.StringPtr("s3cr3t-session")})
	require.True(t, out.IsOK())

	assert.Contains(t, buf.String(), `"instance":"suporte"`)
	assert.Contains(t, buf.String(), "qr code not found in session store")
	assert.NotContains(t, buf.String(), "s3cr3t-session")
}

func TestGetQRCodeErrorSkipsRecovery(t *testing.T) {
	store := &fakeStore{codes: []string{"Q"}}
	c, _ := newClient(t, map[string]reply{
		"GET /session/qr": {401, `{"error":"unauthorized","data":{"QRCode":""}}`},
	}, store)

	out := c.GetQRCode(context.Background(), domain.Instance{ID: "tok"})
	assert.False(t, out.IsOK())
	assert.Zero(t, store.lookups())
}

func TestGetQRCodeHonoursCancellation(t *testing.T) {
	store := &fakeStore{codes: []string{"Q"}}
	c, _ := newClient(t, map[string]reply{
		"GET /session/qr": {200, `{"data":{"QRCode":null}}`},
	}, store)
	c.WithQRDelays(time.Hour, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	out := c.GetQRCode(ctx, domain.Instance{ID: "tok"})
	assert.True(t, out.IsOK())
	assert.Zero(t, store.lookups())
}

func TestLogoutAndDeleteAreLenient(t *testing.T) {
	c, s := newClient(t, map[string]reply{
		"POST /session/disconnect": {500, "Internal Server Error"},
		"DELETE /admin/users/tok":  {404, "404 page not found"},
	}, nil)
	inst := domain.Instance{ID: "tok"}

	out := c.LogoutInstance(context.Background(), inst)
	assert.True(t, out.IsOK())
	assert.Equal(t, "Internal Server Error", out.Body["raw_response"])

	out = c.DeleteInstance(context.Background(), inst)
	assert.True(t, out.IsOK())
	assert.Equal(t, "404 page not found", out.Body["raw_response"])

	assert.Equal(t, "tok", s.calls[0].Token)
	assert.Equal(t, "admin", s.calls[1].Auth)
}

func TestDeleteJSONErrorStaysErr(t *testing.T) {
	c, _ := newClient(t, map[string]reply{
		"DELETE /admin/users/tok": {404, `{"error":"user not found"}`},
	}, nil)

	out := c.DeleteInstance(context.Background(), domain.Instance{ID: "tok"})
	assert.False(t, out.IsOK())
	assert.Equal(t, "user not found", out.ErrorText())
}

func TestWebhookAndProxy(t *testing.T) {
	c, s := newClient(t, nil, nil)
	inst := domain.Instance{ID: "tok"}

	require.True(t, c.SetWebhook(context.Background(), inst, "https://hook").IsOK())
	require.True(t, c.SetProxy(context.Background(), inst, "socks5://p:1080").IsOK())

	assert.Equal(t, "/webhook", s.calls[0].Path)
	assert.Equal(t, map[string]any{
		"webhook": "https://hook",
		"data":    []any{"Message", "ReadReceipt", "Presence", "HistorySync", "ChatPresence"},
	}, s.calls[0].Body)
	assert.Equal(t, "/proxy", s.calls[1].Path)
	assert.Equal(t, map[string]any{"proxy_url": "socks5://p:1080", "enable": true}, s.calls[1].Body)
}

func TestSendMessage(t *testing.T) {
	c, s := newClient(t, nil, nil)
	inst := domain.Instance{ID: "tok"}
	ctx := context.Background()

	c.SendMessage(ctx, inst, "5511", domain.Media{Kind: domain.MediaText, Body: "hi"})
	c.SendMessage(ctx, inst, "5511", domain.Media{Kind: domain.MediaAudio, Body: "data:audio/ogg;base64,AA"})
	c.SendMessage(ctx, inst, "5511", domain.Media{Kind: domain.MediaImage, Body: "data:image/png;base64,BB"})

	require.Len(t, s.calls, 3)
	assert.Equal(t, "/chat/send/text", s.calls[0].Path)
	assert.Equal(t, map[string]any{"Phone": "5511", "Body": "hi"}, s.calls[0].Body)
	assert.Equal(t, "/chat/send/audio", s.calls[1].Path)
	assert.Equal(t, map[string]any{"Phone": "5511", "Audio": "data:audio/ogg;base64,AA"}, s.calls[1].Body)
	assert.Equal(t, "/chat/send/image", s.calls[2].Path)
	assert.Equal(t, map[string]any{"Phone": "5511", "Image": "data:image/png;base64,BB", "Caption": ""}, s.calls[2].Body)
	for _, call := range s.calls {
		assert.Equal(t, "tok", call.Token)
	}
}

func TestMissingQR(t *testing.T) {
	assert.True(t, missingQR(map[string]any{}))
	assert.True(t, missingQR(map[string]any{"data": nil}))
	assert.True(t, missingQR(map[string]any{"data": map[string]any{}}))
	assert.True(t, missingQR(map[string]any{"data": map[string]any{"QRCode": ""}}))
	assert.False(t, missingQR(map[string]any{"data": map[string]any{"QRCode": "x"}}))
	assert.False(t, missingQR(map[string]any{"data": "text"}))
}
