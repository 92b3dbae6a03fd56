package evolution

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"wa-gateway/internal/adapters/provider/upstream"
	"wa-gateway/internal/domain"
)

const integration = "WHATSAPP-BAILEYS"

// Client implements ports.SessionProvider for an Evolution API server.
// Instances are addressed by name in every path.
type Client struct {
	baseURL string
	apiKey  string
	up      *upstream.Client
	log     *slog.Logger
}

// New creates a Client. Empty baseURL or apiKey are reported per call.
func New(baseURL, apiKey string, up *upstream.Client, log *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		up:      up,
		log:     log,
	}
}

type webhookConfig struct {
	URL      string   `json:"url"`
	ByEvents bool     `json:"byEvents"`
	Base64   bool     `json:"base64"`
	Events   []string `json:"events"`
}

type createRequest struct {
	InstanceName  string         `json:"instanceName"`
	Token         string         `json:"token"`
	Integration   string         `json:"integration"`
	QRCode        *bool          `json:"qrcode,omitempty"`
	Webhook       *webhookConfig `json:"webhook,omitempty"`
	ProxyHost     *string        `json:"proxyHost,omitempty"`
	ProxyPort     *string        `json:"proxyPort,omitempty"`
	ProxyProtocol *string        `json:"proxyProtocol,omitempty"`
	ProxyUsername *string        `json:"proxyUsername,omitempty"`
	ProxyPassword *string        `json:"proxyPassword,omitempty"`
}

type setWebhookRequest struct {
	Enabled         bool     `json:"enabled"`
	URL             string   `json:"url"`
	WebhookByEvents bool     `json:"webhookByEvents"`
	WebhookBase64   bool     `json:"webhookBase64"`
	Events          []string `json:"events"`
}

type sendTextRequest struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

type sendAudioRequest struct {
	Number string `json:"number"`
	Audio  string `json:"audio"`
	Delay  int    `json:"delay"`
}

type sendMediaRequest struct {
	Number   string `json:"number"`
	Media    string `json:"media"`
	Mimetype string `json:"mimetype"`
	Caption  string `json:"caption"`
	FileName string `json:"fileName"`
}

func (c *Client) header() map[string]string {
	return map[string]string{"apikey": c.apiKey}
}

func (c *Client) checkServer() (domain.Outcome, bool) {
	if c.apiKey == "" {
		return domain.Err("Invalid Evolution token: evo_token is empty"), false
	}
	if c.baseURL == "" {
		return domain.Err("Invalid API URL: url is empty"), false
	}
	return domain.Outcome{}, true
}

// CreateInstance creates a Baileys instance named inst.Name, keyed by its
// session token, with an optional webhook and proxy.
func (c *Client) CreateInstance(ctx context.Context, inst domain.Instance, proxyURL string) domain.Outcome {
	return c.Create(ctx, inst.SessionToken(), inst.Name, inst.Webhook(), proxyURL)
}

// Create validates its inputs before any network use and then posts
// /instance/create. qrcode is only requested when a webhook or a proxy is set.
func (c *Client) Create(ctx context.Context, instToken, instName, webhookURL, proxyURL string) domain.Outcome {
	if c.apiKey == "" {
		return domain.Err("Invalid Evolution token: evo_token is empty")
	}
	if instToken == "" {
		return domain.Err("Invalid instance token: inst_token is empty")
	}
	if instName == "" {
		return domain.Err("Invalid instance name: inst_name is empty")
	}
	if c.baseURL == "" {
		return domain.Err("Invalid API URL: url is empty")
	}

	return c.up.Do(ctx, upstream.Request{
		Method: http.MethodPost,
		URL:    c.baseURL + "/instance/create",
		Header: c.header(),
		Body:   createBody(instToken, instName, webhookURL, domain.ParseProxy(proxyURL)),
	})
}

func createBody(instToken, instName, webhookURL string, proxy domain.Proxy) createRequest {
	req := createRequest{
		InstanceName: instName,
		Token:        instToken,
		Integration:  integration,
	}
	if proxy.Empty() && webhookURL == "" {
		return req
	}

	qr := true
	req.QRCode = &qr
	if webhookURL != "" {
		req.Webhook = &webhookConfig{
			URL:    webhookURL,
			Base64: true,
			Events: []string{"MESSAGES_UPSERT"},
		}
	}
	if !proxy.Empty() {
		req.ProxyHost = &proxy.Host
		req.ProxyPort = &proxy.Port
		req.ProxyProtocol = &proxy.Scheme
		req.ProxyUsername = &proxy.Username
		req.ProxyPassword = &proxy.Password
	}
	return req
}

// ConnectInstance starts the session and returns the pairing code.
func (c *Client) ConnectInstance(ctx context.Context, inst domain.Instance) domain.Outcome {
	return c.instanceCall(ctx, http.MethodGet, "/instance/connect/", inst)
}

func (c *Client) LogoutInstance(ctx context.Context, inst domain.Instance) domain.Outcome {
	return c.instanceCall(ctx, http.MethodDelete, "/instance/logout/", inst)
}

func (c *Client) DeleteInstance(ctx context.Context, inst domain.Instance) domain.Outcome {
	return c.instanceCall(ctx, http.MethodDelete, "/instance/delete/", inst)
}

func (c *Client) instanceCall(ctx context.Context, method, prefix string, inst domain.Instance) domain.Outcome {
	if out, ok := c.checkServer(); !ok {
		return out
	}
	return c.up.Do(ctx, upstream.Request{
		Method: method,
		URL:    c.baseURL + prefix + inst.Name,
		Header: c.header(),
	})
}

// SetWebhook replaces the instance webhook. Evolution takes this as a GET
// with a JSON body.
func (c *Client) SetWebhook(ctx context.Context, inst domain.Instance, webhookURL string) domain.Outcome {
	if out, ok := c.checkServer(); !ok {
		return out
	}
	return c.up.Do(ctx, upstream.Request{
		Method: http.MethodGet,
		URL:    c.baseURL + "/webhook/set/" + inst.Name,
		Header: c.header(),
		Body: setWebhookRequest{
			Enabled:       true,
			URL:           webhookURL,
			WebhookBase64: true,
			Events:        []string{"APPLICATION_STARTUP", "MESSAGE_UPSERT"},
		},
	})
}

// SendMessage sends text, audio or an image. Images go through sendMedia,
// which accepts either a URL or bare base64; data URL prefixes are stripped.
func (c *Client) SendMessage(ctx context.Context, inst domain.Instance, to string, media domain.Media) domain.Outcome {
	if out, ok := c.checkServer(); !ok {
		return out
	}

	var (
		path string
		body any
	)
	switch media.Kind {
	case domain.MediaText:
		path = "/message/sendText/"
		body = sendTextRequest{Number: to, Text: media.Body}
	case domain.MediaAudio:
		path = "/message/sendWhatsappAudio/"
		body = sendAudioRequest{Number: to, Audio: media.Body, Delay: 100}
	case domain.MediaImage:
		path = "/message/sendMedia/"
		body = sendMediaRequest{
			Number:   to,
			Media:    StripDataURL(media.Body),
			Mimetype: "image/png",
			FileName: "imagem.png",
		}
	default:
		return domain.Errorf("invalid media type: %q", media.Kind)
	}

	return c.up.Do(ctx, upstream.Request{
		Method: http.MethodPost,
		URL:    c.baseURL + path + inst.Name,
		Header: c.header(),
		Body:   body,
	})
}

// StripDataURL returns the base64 payload of a data URL; other input is returned as is.
func StripDataURL(s string) string {
	const pngPrefix = "data:image/png;base64,"
	if rest, ok := strings.CutPrefix(s, pngPrefix); ok {
		return rest
	}
	if strings.HasPrefix(s, "data:") {
		if _, rest, ok := strings.Cut(s, ","); ok {
			return rest
		}
	}
	return s
}
