package cloud

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"wa-gateway/internal/adapters/provider/upstream"
	"wa-gateway/internal/domain"
)

// DefaultBaseURL is the Graph API host.
const DefaultBaseURL = "https://graph.facebook.com"

// Client implements ports.CloudProvider against the Graph API.
type Client struct {
	baseURL string
	version string
	up      *upstream.Client
	log     *slog.Logger
}

// New creates a Client for the given API version. The version is rendered in
// its shortest form, so 22.0 becomes "22".
func New(version float64, up *upstream.Client, log *slog.Logger) *Client {
	return &Client{
		baseURL: DefaultBaseURL,
		version: strconv.FormatFloat(version, 'f', -1, 64),
		up:      up,
		log:     log,
	}
}

// WithBaseURL points the client at another host; used against stubs and the mock upstream.
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

func (c *Client) endpoint(target, path string) string {
	return fmt.Sprintf("%s/%s/%s/%s", c.baseURL, c.version, target, path)
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

// SubscribeToWABA subscribes the app to the business account's webhooks.
func (c *Client) SubscribeToWABA(ctx context.Context, wabaID, token string) domain.Outcome {
	return c.up.Do(ctx, upstream.Request{
		Method: http.MethodPost,
		URL:    c.endpoint(wabaID, "subscribed_apps"),
		Header: bearer(token),
	})
}

// ListPhoneNumbers lists the numbers of a business account.
func (c *Client) ListPhoneNumbers(ctx context.Context, wabaID, token string) domain.Outcome {
	return c.up.Do(ctx, upstream.Request{
		Method: http.MethodGet,
		URL:    c.endpoint(wabaID, "phone_numbers"),
		Header: bearer(token),
	})
}

// RegisterPhoneNumber registers a number for Cloud API use. pin is optional.
func (c *Client) RegisterPhoneNumber(ctx context.Context, phoneNumberID, token, pin string) domain.Outcome {
	return c.up.Do(ctx, upstream.Request{
		Method: http.MethodPost,
		URL:    c.endpoint(phoneNumberID, "register"),
		Header: bearer(token),
		Body:   registerRequest{MessagingProduct: "whatsapp", PIN: pin},
	})
}

// RegisterNumber runs subscribe, list and register in order, stopping at the
// first failure. Earlier steps are not undone.
func (c *Client) RegisterNumber(ctx context.Context, wabaID, token, pin string) (domain.Outcome, string) {
	if out := c.SubscribeToWABA(ctx, wabaID, token); !out.IsOK() {
		return out, ""
	}

	out := c.ListPhoneNumbers(ctx, wabaID, token)
	if !out.IsOK() {
		return out, ""
	}

	phoneID := firstPhoneNumberID(out.Body)
	if phoneID == "" {
		c.log.Error("no phone number on waba", "waba_id", wabaID)
		return domain.Err("couldn't find number_id data."), ""
	}

	return c.RegisterPhoneNumber(ctx, phoneID, token, pin), phoneID
}

func firstPhoneNumberID(body map[string]any) string {
	data, ok := body["data"].([]any)
	if !ok || len(data) == 0 {
		return ""
	}
	first, ok := data[0].(map[string]any)
	if !ok {
		return ""
	}
	switch id := first["id"].(type) {
	case string:
		return id
	case fmt.Stringer:
		return id.String()
	}
	return ""
}

// SendMessage sends a text, audio or image message.
func (c *Client) SendMessage(ctx context.Context, to string, media domain.Media, phoneNumberID, token string) domain.Outcome {
	msg := message{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
	}
	switch media.Kind {
	case domain.MediaText:
		msg.Type = "text"
		msg.Text = &textObj{Body: media.Body}
	case domain.MediaAudio:
		msg.Type = "audio"
		msg.Audio = &mediaObj{Link: media.Body}
	case domain.MediaImage:
		msg.Type = "image"
		msg.Image = &mediaObj{Link: media.Body}
	default:
		return domain.Errorf("invalid media type: %q", media.Kind)
	}

	return c.up.Do(ctx, upstream.Request{
		Method: http.MethodPost,
		URL:    c.endpoint(phoneNumberID, "messages"),
		Header: bearer(token),
		Body:   msg,
	})
}

// SendTemplate sends an approved template. An IMAGE header adds a header
// component; vars, when present, fill the body component in order.
func (c *Client) SendTemplate(
	ctx context.Context,
	to string,
	header domain.Media,
	phoneNumberID, token string,
	vars []domain.TemplateVariable,
	name, lang string,
) domain.Outcome {
	if lang == "" {
		lang = domain.DefaultTemplateLanguage
	}

	tpl := &templateObj{
		Name:       name,
		Language:   languageObj{Code: lang},
		Components: make([]componentObj, 0, 2),
	}
	if header.Kind == domain.MediaImage {
		tpl.Components = append(tpl.Components, componentObj{
			Type:       "header",
			Parameters: []parameterObj{{Type: "image", Image: &mediaObj{Link: header.Body}}},
		})
	}
	if len(vars) > 0 {
		params := make([]parameterObj, 0, len(vars))
		for _, v := range vars {
			params = append(params, parameter(v))
		}
		tpl.Components = append(tpl.Components, componentObj{Type: "body", Parameters: params})
	}

	return c.up.Do(ctx, upstream.Request{
		Method: http.MethodPost,
		URL:    c.endpoint(phoneNumberID, "messages"),
		Header: bearer(token),
		Body: message{
			MessagingProduct: "whatsapp",
			RecipientType:    "individual",
			To:               to,
			Type:             "template",
			Template:         tpl,
		},
	})
}

// RegisterTemplate submits a template for approval.
func (c *Client) RegisterTemplate(ctx context.Context, wabaID, token string, tpl domain.Template) domain.Outcome {
	return c.up.Do(ctx, upstream.Request{
		Method: http.MethodPost,
		URL:    c.endpoint(wabaID, "message_templates"),
		Header: bearer(token),
		Body:   definition(tpl),
	})
}

func definition(tpl domain.Template) templateDefinition {
	def := templateDefinition{
		Name:       tpl.Name,
		Language:   tpl.Lang(),
		Category:   string(tpl.Category),
		Components: make([]templateComponent, 0, 4),
	}

	if h := tpl.Header; h.Text != "" || len(h.Examples) > 0 {
		comp := templateComponent{Type: "HEADER"}
		switch {
		case h.Text != "":
			comp.Format = string(domain.HeaderText)
			comp.Text = h.Text
			if len(h.Examples) > 0 {
				comp.Example = &componentExample{HeaderText: h.Examples}
			}
		default:
			comp.Format = string(domain.HeaderImage)
			comp.Example = &componentExample{HeaderHandle: h.Examples}
		}
		def.Components = append(def.Components, comp)
	}

	if b := tpl.Body; b.Text != "" {
		comp := templateComponent{Type: "BODY", Text: b.Text}
		if len(b.Examples) > 0 {
			comp.Example = &componentExample{BodyText: [][]string{b.Examples}}
		}
		def.Components = append(def.Components, comp)
	}

	if tpl.Footer != "" {
		def.Components = append(def.Components, templateComponent{Type: "FOOTER", Text: tpl.Footer})
	}

	if len(tpl.Buttons) > 0 {
		buttons := make([]buttonDef, 0, len(tpl.Buttons))
		for _, b := range tpl.Buttons {
			buttons = append(buttons, buttonDef{Type: b.Kind, Text: b.Text})
		}
		def.Components = append(def.Components, templateComponent{Type: "BUTTONS", Buttons: buttons})
	}

	return def
}
