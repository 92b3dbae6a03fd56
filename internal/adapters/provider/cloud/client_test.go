package cloud

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"wa-gateway/internal/adapters/provider/upstream"
	"wa-gateway/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	Method string
	Path   string
	Auth   string
	Body   map[string]any
}

// graphStub answers by path and records every call.
type graphStub struct {
	mu        sync.Mutex
	calls     []call
	responses map[string]string
}

func (g *graphStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)

	g.mu.Lock()
	g.calls = append(g.calls, call{Method: r.Method, Path: r.URL.Path, Auth: r.Header.Get("Authorization"), Body: body})
	g.mu.Unlock()

	resp, ok := g.responses[r.URL.Path]
	if !ok {
		resp = `{"success":true}`
	}
	w.Write([]byte(resp))
}

func (g *graphStub) paths() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, 0, len(g.calls))
	for _, c := range g.calls {
		out = append(out, c.Path)
	}
	return out
}

func newTestClient(t *testing.T, responses map[string]string) (*Client, *graphStub) {
	t.Helper()
	stub := &graphStub{responses: responses}
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(22.0, upstream.New(log), log).WithBaseURL(srv.URL), stub
}

func TestRegisterNumberSuccess(t *testing.T) {
	c, stub := newTestClient(t, map[string]string{
		"/22/W1/phone_numbers": `{"data":[{"id":"P1","display_phone_number":"+55 11"}]}`,
		"/22/P1/register":      `{"success":true,"step":"register"}`,
	})

	out, phoneID := c.RegisterNumber(context.Background(), "W1", "tok", "")
	require.True(t, out.IsOK())
	assert.Equal(t, "P1", phoneID)
	assert.Equal(t, "register", out.Body["step"])
	assert.Equal(t, []string{"/22/W1/subscribed_apps", "/22/W1/phone_numbers", "/22/P1/register"}, stub.paths())

	for _, got := range stub.calls {
		assert.Equal(t, "Bearer tok", got.Auth)
	}
	assert.Equal(t, map[string]any{"messaging_product": "whatsapp"}, stub.calls[2].Body)
}

func TestRegisterNumberSendsPIN(t *testing.T) {
	c, stub := newTestClient(t, map[string]string{
		"/22/W1/phone_numbers": `{"data":[{"id":"P1"}]}`,
	})

	out, _ := c.RegisterNumber(context.Background(), "W1", "tok", "123456")
	require.True(t, out.IsOK())
	assert.Equal(t, "123456", stub.calls[2].Body["pin"])
}

func TestRegisterNumberMissingPhone(t *testing.T) {
	c, stub := newTestClient(t, map[string]string{
		"/22/W1/phone_numbers": `{"data":[]}`,
	})

	out, phoneID := c.RegisterNumber(context.Background(), "W1", "tok", "")
	assert.False(t, out.IsOK())
	assert.Equal(t, map[string]any{"error": "couldn't find number_id data."}, out.Body)
	assert.Empty(t, phoneID)
	assert.NotContains(t, stub.paths(), "/22/P1/register")
	assert.Len(t, stub.calls, 2)
}

func TestRegisterNumberStopsOnSubscribeFailure(t *testing.T) {
	stub := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"invalid token"}`))
	})
	srv := httptest.NewServer(stub)
	defer srv.Close()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := New(22, upstream.New(log), log).WithBaseURL(srv.URL)

	out, _ := c.RegisterNumber(context.Background(), "W1", "bad", "")
	assert.False(t, out.IsOK())
	assert.Equal(t, "server returned HTTP error code", out.ErrorText())
	assert.Equal(t, "invalid token", out.Body["message"])
}

func TestVersionRendering(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	assert.Equal(t, "https://graph.facebook.com/22/W/x", New(22.0, nil, log).endpoint("W", "x"))
	assert.Equal(t, "https://graph.facebook.com/21.5/W/x", New(21.5, nil, log).endpoint("W", "x"))
}

func TestSendMessageBodies(t *testing.T) {
	c, stub := newTestClient(t, nil)
	ctx := context.Background()

	require.True(t, c.SendMessage(ctx, "5511", domain.Media{Kind: domain.MediaText, Body: "hi"}, "P1", "tok").IsOK())
	require.True(t, c.SendMessage(ctx, "5511", domain.Media{Kind: domain.MediaAudio, Body: "https://a/x.ogg"}, "P1", "tok").IsOK())
	require.True(t, c.SendMessage(ctx, "5511", domain.Media{Kind: domain.MediaImage, Body: "https://a/x.png"}, "P1", "tok").IsOK())

	require.Len(t, stub.calls, 3)
	assert.Equal(t, "/22/P1/messages", stub.calls[0].Path)
	assert.Equal(t, map[string]any{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                "5511",
		"type":              "text",
		"text":              map[string]any{"preview_url": false, "body": "hi"},
	}, stub.calls[0].Body)
	assert.Equal(t, map[string]any{"link": "https://a/x.ogg"}, stub.calls[1].Body["audio"])
	assert.Equal(t, "image", stub.calls[2].Body["type"])
	assert.Equal(t, map[string]any{"link": "https://a/x.png"}, stub.calls[2].Body["image"])
}

func TestSendTemplateComponents(t *testing.T) {
	c, stub := newTestClient(t, nil)

	vars := []domain.TemplateVariable{
		{Kind: domain.VariableText, Body: "Ana"},
		{Kind: domain.VariableCurrency, Body: "USD:12.5"},
		{Kind: domain.VariableDateTime, Body: "2024-12-31T23:59:00"},
	}
	out := c.SendTemplate(context.Background(), "5511",
		domain.Media{Kind: domain.MediaImage, Body: "https://a/h.png"}, "P1", "tok", vars, "welcome", "")
	require.True(t, out.IsOK())

	tpl := stub.calls[0].Body["template"].(map[string]any)
	assert.Equal(t, "welcome", tpl["name"])
	assert.Equal(t, map[string]any{"code": "pt_BR"}, tpl["language"])

	comps := tpl["components"].([]any)
	require.Len(t, comps, 2)
	assert.Equal(t, map[string]any{
		"type":       "header",
		"parameters": []any{
			map[string]any{"type": "image", "image": map[string]any{"link": "https://a/h.png"}},
		},
	}, comps[0])

	params := comps[1].(map[string]any)["parameters"].([]any)
	require.Len(t, params, 3)
	assert.Equal(t, map[string]any{"type": "text", "text": "Ana"}, params[0])
	assert.Equal(t, map[string]any{
		"type":     "currency",
		"currency": map[string]any{
			"fallback_value": "$12.5",
			"code":           "USD",
			"amount_1000":    float64(12500),
		},
	}, params[1])
	dt := params[2].(map[string]any)["date_time"].(map[string]any)
	assert.Equal(t, float64(23), dt["hour"])
	assert.Equal(t, "GREGORIAN", dt["calendar"])
}

func TestSendTemplateWithoutHeaderOrVars(t *testing.T) {
	c, stub := newTestClient(t, nil)

	out := c.SendTemplate(context.Background(), "5511", domain.Media{Kind: domain.MediaText}, "P1", "tok", nil, "hello", "en_US")
	require.True(t, out.IsOK())

	tpl := stub.calls[0].Body["template"].(map[string]any)
	assert.Equal(t, []any{}, tpl["components"])
	assert.Equal(t, map[string]any{"code": "en_US"}, tpl["language"])
}

func TestRegisterTemplate(t *testing.T) {
	c, stub := newTestClient(t, nil)

	tpl := domain.Template{
		Name:     "order_ready",
		Category: domain.CategoryUtility,
		Header:   domain.TemplateHeader{Text: "Pedido {{1}}", Examples: []string{"#42"}},
		Body:     domain.TemplateBody{Text: "Olá {{1}}, total {{2}}", Examples: []string{"Ana", "R$ 10"}},
		Footer:   "Obrigado",
		Buttons:  []domain.Button{{Kind: "QUICK_REPLY", Text: "Ok"}, {Kind: "QUICK_REPLY", Text: "Parar"}},
	}
	require.True(t, c.RegisterTemplate(context.Background(), "W1", "tok", tpl).IsOK())

	got := stub.calls[0]
	assert.Equal(t, "/22/W1/message_templates", got.Path)
	assert.Equal(t, "order_ready", got.Body["name"])
	assert.Equal(t, "pt_BR", got.Body["language"])
	assert.Equal(t, "UTILITY", got.Body["category"])

	comps := got.Body["components"].([]any)
	require.Len(t, comps, 4)
	assert.Equal(t, map[string]any{
		"type":    "HEADER",
		"format":  "TEXT",
		"text":    "Pedido {{1}}",
		"example": map[string]any{"header_text": []any{"#42"}},
	}, comps[0])
	assert.Equal(t, map[string]any{
		"type":    "BODY",
		"text":    "Olá {{1}}, total {{2}}",
		"example": map[string]any{"body_text": []any{[]any{"Ana", "R$ 10"}}},
	}, comps[1])
	assert.Equal(t, map[string]any{"type": "FOOTER", "text": "Obrigado"}, comps[2])
	assert.Equal(t, map[string]any{
		"type":    "BUTTONS",
		"buttons": []any{
			map[string]any{"type": "QUICK_REPLY", "text": "Ok"},
			map[string]any{"type": "QUICK_REPLY", "text": "Parar"},
		},
	}, comps[3])
}

func TestRegisterTemplateImageHeader(t *testing.T) {
	def := definition(domain.Template{
		Name:   "promo",
		Header: domain.TemplateHeader{Examples: []string{"4::aW1hZ2U="}},
		Body:   domain.TemplateBody{Text: "Promo"},
	})
	require.Len(t, def.Components, 2)
	assert.Equal(t, "IMAGE", def.Components[0].Format)
	assert.Equal(t, []string{"4::aW1hZ2U="}, def.Components[0].Example.HeaderHandle)
	assert.Nil(t, def.Components[1].Example)
}

func TestUpstreamHTMLFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer srv.Close()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := New(22, upstream.New(log), log).WithBaseURL(srv.URL)

	out := c.SendMessage(context.Background(), "5511", domain.Media{Kind: domain.MediaText, Body: "x"}, "P1", "tok")
	assert.Equal(t, domain.OutcomeErr, out.Kind)
	assert.Equal(t, map[string]any{"error": "remote server error", "raw_response": "<html>bad gateway</html>"}, out.Body)
}
