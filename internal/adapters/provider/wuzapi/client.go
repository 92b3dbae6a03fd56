package wuzapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"wa-gateway/internal/adapters/provider/upstream"
	"wa-gateway/internal/domain"
	"wa-gateway/internal/ports"
)

var sessionEvents = []string{"Message", "ReadReceipt", "Presence", "HistorySync", "ChatPresence"}

// Client implements ports.SessionProvider, ports.QRProvider and
// ports.ProxyProvider for a Wuzapi server. Session endpoints authenticate
// with the instance token, admin endpoints with the admin token.
type Client struct {
	baseURL    string
	adminToken string
	qrStore    ports.QRStore
	up         *upstream.Client
	log        *slog.Logger

	firstWait  time.Duration
	secondWait time.Duration
}

// New creates a Client. qrStore may be nil, which disables QR recovery.
func New(baseURL, adminToken string, qrStore ports.QRStore, up *upstream.Client, log *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		adminToken: adminToken,
		qrStore:    qrStore,
		up:         up,
		log:        log,
		firstWait:  500 * time.Millisecond,
		secondWait: 1500 * time.Millisecond,
	}
}

// WithQRDelays overrides the two QR recovery waits.
func (c *Client) WithQRDelays(first, second time.Duration) *Client {
	c.firstWait = first
	c.secondWait = second
	return c
}

type connectRequest struct {
	Subscribe []string `json:"Subscribe"`
	Immediate bool     `json:"Immediate"`
}

type webhookRequest struct {
	Webhook string   `json:"webhook"`
	Data    []string `json:"data"`
}

type proxyRequest struct {
	ProxyURL string `json:"proxy_url"`
	Enable   bool   `json:"enable"`
}

type sendTextRequest struct {
	Phone string `json:"Phone"`
	Body  string `json:"Body"`
}

type sendAudioRequest struct {
	Phone string `json:"Phone"`
	Audio string `json:"Audio"`
}

type sendImageRequest struct {
	Phone   string `json:"Phone"`
	Image   string `json:"Image"`
	Caption string `json:"Caption"`
}

func (c *Client) checkSession(token string) (domain.Outcome, bool) {
	if token == "" {
		return domain.Err("Invalid token: token is empty"), false
	}
	if c.baseURL == "" {
		return domain.Err("Invalid API URL: url is empty"), false
	}
	return domain.Outcome{}, true
}

func (c *Client) session(ctx context.Context, method, path, token string, body any) domain.Outcome {
	if out, ok := c.checkSession(token); !ok {
		return out
	}
	return c.up.Do(ctx, upstream.Request{
		Method: method,
		URL:    c.baseURL + path,
		Header: map[string]string{"token": token},
		Body:   body,
	})
}

// CreateInstance creates the user, connects its session and returns the
// outcome of the QR fetch.
func (c *Client) CreateInstance(ctx context.Context, inst domain.Instance, proxyURL string) domain.Outcome {
	return c.Create(ctx, inst.SessionToken(), inst.Name, inst.Webhook(), proxyURL)
}

// Create runs create user, connect and get QR in order and stops at the
// first failure. A created user is not removed when a later step fails.
func (c *Client) Create(ctx context.Context, instToken, instName, webhookURL, proxyURL string) domain.Outcome {
	switch {
	case instToken == "":
		return domain.Err("Invalid instance token: inst_token is empty")
	case instName == "":
		return domain.Err("Invalid instance name: inst_name is empty")
	case c.baseURL == "":
		return domain.Err("Invalid API URL: url is empty")
	case c.adminToken == "":
		return domain.Err("Invalid admin token: wuz_admin_token is empty")
	}

	body := map[string]any{"name": instName, "token": instToken}
	if webhookURL != "" {
		body["webhook"] = webhookURL
		body["events"] = "All"
	}
	if proxyURL != "" {
		body["proxyConfig"] = map[string]any{"enabled": true, "proxyURL": proxyURL}
	}

	out := c.up.Do(ctx, upstream.Request{
		Method: http.MethodPost,
		URL:    c.baseURL + "/admin/users",
		Header: map[string]string{"Authorization": c.adminToken},
		Body:   body,
	})
	if !out.IsOK() {
		return out
	}

	if out := c.connect(ctx, instToken); !out.IsOK() {
		c.log.Error("connect after create failed", "instance", instName)
		return out
	}
	return c.qrCode(ctx, instName, instToken)
}

func (c *Client) ConnectInstance(ctx context.Context, inst domain.Instance) domain.Outcome {
	return c.connect(ctx, inst.SessionToken())
}

func (c *Client) connect(ctx context.Context, token string) domain.Outcome {
	return c.session(ctx, http.MethodPost, "/session/connect", token,
		connectRequest{Subscribe: sessionEvents, Immediate: true})
}

// LogoutInstance disconnects the session. Unparseable bodies are OK whatever
// the status.
func (c *Client) LogoutInstance(ctx context.Context, inst domain.Instance) domain.Outcome {
	token := inst.SessionToken()
	if out, ok := c.checkSession(token); !ok {
		return out
	}
	return c.up.DoLenient(ctx, upstream.Request{
		Method: http.MethodPost,
		URL:    c.baseURL + "/session/disconnect",
		Header: map[string]string{"token": token},
	})
}

// DeleteInstance removes the user with admin credentials, leniently like LogoutInstance.
func (c *Client) DeleteInstance(ctx context.Context, inst domain.Instance) domain.Outcome {
	token := inst.SessionToken()
	if out, ok := c.checkSession(token); !ok {
		return out
	}
	if c.adminToken == "" {
		return domain.Err("Invalid admin token: wuz_admin_token is empty")
	}
	return c.up.DoLenient(ctx, upstream.Request{
		Method: http.MethodDelete,
		URL:    c.baseURL + "/admin/users/" + token,
		Header: map[string]string{"Authorization": c.adminToken},
	})
}

func (c *Client) SetWebhook(ctx context.Context, inst domain.Instance, webhookURL string) domain.Outcome {
	return c.session(ctx, http.MethodPost, "/webhook", inst.SessionToken(),
		webhookRequest{Webhook: webhookURL, Data: sessionEvents})
}

func (c *Client) SetProxy(ctx context.Context, inst domain.Instance, proxyURL string) domain.Outcome {
	return c.session(ctx, http.MethodPost, "/proxy", inst.SessionToken(),
		proxyRequest{ProxyURL: proxyURL, Enable: true})
}

func (c *Client) SendMessage(ctx context.Context, inst domain.Instance, to string, media domain.Media) domain.Outcome {
	var (
		path string
		body any
	)
	switch media.Kind {
	case domain.MediaText:
		path, body = "/chat/send/text", sendTextRequest{Phone: to, Body: media.Body}
	case domain.MediaAudio:
		path, body = "/chat/send/audio", sendAudioRequest{Phone: to, Audio: media.Body}
	case domain.MediaImage:
		path, body = "/chat/send/image", sendImageRequest{Phone: to, Image: media.Body}
	default:
		return domain.Errorf("invalid media type: %q", media.Kind)
	}
	return c.session(ctx, http.MethodPost, path, inst.SessionToken(), body)
}

// GetQRCode fetches the pairing QR, falling back to Wuzapi's database when
// the API has not produced one yet.
func (c *Client) GetQRCode(ctx context.Context, inst domain.Instance) domain.Outcome {
	return c.qrCode(ctx, inst.Name, inst.SessionToken())
}
