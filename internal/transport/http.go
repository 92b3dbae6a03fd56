package transport

import (
	"context"
	"log/slog"
	"time"

	"wa-gateway/internal/domain"

	"github.com/gofiber/fiber/v2"
)

// Gateway is the operation set the HTTP layer exposes. *app.Dispatcher
// implements it.
type Gateway interface {
	Send(ctx context.Context, instanceID, number string, media domain.Media) domain.Outcome
	Enqueue(ctx context.Context, instanceID, number string, media domain.Media) (domain.SendRequest, error)
	CreateInstance(ctx context.Context, n domain.NewInstance) domain.Outcome
	ConnectInstance(ctx context.Context, instanceID string) domain.Outcome
	LogoutInstance(ctx context.Context, instanceID string) domain.Outcome
	DeleteInstance(ctx context.Context, instanceID string) domain.Outcome
	SetWebhook(ctx context.Context, instanceID, webhookURL string) domain.Outcome
	SetProxy(ctx context.Context, instanceID, proxyURL string) domain.Outcome
	GetQRCode(ctx context.Context, instanceID string) domain.Outcome
	ListInstances(ctx context.Context) ([]domain.Instance, error)
	SendTemplate(ctx context.Context, instanceID, number string, header domain.Media, vars []domain.TemplateVariable, name, lang string) domain.Outcome
	RegisterTemplate(ctx context.Context, instanceID string, tpl domain.Template) domain.Outcome
}

// Handler holds all HTTP handlers for the gateway API.
type Handler struct {
	gw  Gateway
	log *slog.Logger
}

// NewHandler wires up a Handler with its dependencies.
func NewHandler(gw Gateway, log *slog.Logger) *Handler {
	return &Handler{gw: gw, log: log}
}

// Register mounts all routes onto the given Fiber router.
func (h *Handler) Register(router fiber.Router) {
	router.Get("/instances", h.ListInstances)
	router.Post("/instances", h.CreateInstance)
	router.Delete("/instances/:id", h.DeleteInstance)
	router.Post("/instances/:id/connect", h.ConnectInstance)
	router.Post("/instances/:id/logout", h.LogoutInstance)
	router.Get("/instances/:id/qr", h.GetQRCode)
	router.Put("/instances/:id/webhook", h.SetWebhook)
	router.Put("/instances/:id/proxy", h.SetProxy)
	router.Post("/instances/:id/messages", h.SendMessage)
	router.Post("/instances/:id/templates", h.RegisterTemplate)
	router.Post("/instances/:id/templates/send", h.SendTemplate)
}

// respond forwards the outcome body verbatim: 200 for OK, 400 for ERR.
func respond(c *fiber.Ctx, out domain.Outcome) error {
	status := fiber.StatusOK
	if !out.IsOK() {
		status = fiber.StatusBadRequest
	}
	body := out.Body
	if body == nil {
		body = map[string]any{}
	}
	return c.Status(status).JSON(body)
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

// ── Instances ────────────────────────────────────────────────────────────────

type instanceView struct {
	InstanceID    string    `json:"instance_id"`
	Name          string    `json:"name"`
	InstanceType  string    `json:"instance_type"`
	IsActive      bool      `json:"is_active"`
	WebhookURL    *string   `json:"webhook_url"`
	WabaID        *string   `json:"waba_id,omitempty"`
	PhoneNumberID *string   `json:"phone_number_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ListInstances returns the directory without access tokens.
//
// GET /instances
func (h *Handler) ListInstances(c *fiber.Ctx) error {
	instances, err := h.gw.ListInstances(c.UserContext())
	if err != nil {
		h.log.Error("list instances", "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	views := make([]instanceView, 0, len(instances))
	for _, inst := range instances {
		views = append(views, instanceView{
			InstanceID:    inst.ID,
			Name:          inst.Name,
			InstanceType:  string(inst.Kind),
			IsActive:      inst.IsActive,
			WebhookURL:    inst.WebhookURL,
			WabaID:        inst.WabaID,
			PhoneNumberID: inst.PhoneNumberID,
			CreatedAt:     inst.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"instances": views})
}

type createInstanceRequest struct {
	InstanceID   string `json:"instance_id"`
	Name         string `json:"name"`
	InstanceType string `json:"instance_type"`
	WebhookURL   string `json:"webhook_url"`
	ProxyURL     string `json:"proxy_url"`
	WabaID       string `json:"waba_id"`
	AccessToken  string `json:"access_token"`
	PIN          string `json:"pin"`
}

// CreateInstance creates an instance upstream and stores it.
//
// POST /instances
// Body: { "name": "...", "instance_type": "EVOLUTION"|"WUZAPI"|"CLOUD", ... }
func (h *Handler) CreateInstance(c *fiber.Ctx) error {
	var req createInstanceRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Name == "" {
		return badRequest(c, "name is required")
	}

	kind, err := domain.ParseProviderKind(req.InstanceType)
	if err != nil {
		return badRequest(c, "instance type is not valid.")
	}

	return respond(c, h.gw.CreateInstance(c.UserContext(), domain.NewInstance{
		ID:          req.InstanceID,
		Name:        req.Name,
		Kind:        kind,
		WebhookURL:  req.WebhookURL,
		ProxyURL:    req.ProxyURL,
		WabaID:      req.WabaID,
		AccessToken: req.AccessToken,
		PIN:         req.PIN,
	}))
}

// DELETE /instances/:id
func (h *Handler) DeleteInstance(c *fiber.Ctx) error {
	return respond(c, h.gw.DeleteInstance(c.UserContext(), c.Params("id")))
}

// POST /instances/:id/connect
func (h *Handler) ConnectInstance(c *fiber.Ctx) error {
	return respond(c, h.gw.ConnectInstance(c.UserContext(), c.Params("id")))
}

// POST /instances/:id/logout
func (h *Handler) LogoutInstance(c *fiber.Ctx) error {
	return respond(c, h.gw.LogoutInstance(c.UserContext(), c.Params("id")))
}

// GET /instances/:id/qr
func (h *Handler) GetQRCode(c *fiber.Ctx) error {
	return respond(c, h.gw.GetQRCode(c.UserContext(), c.Params("id")))
}

type webhookRequest struct {
	WebhookURL string `json:"webhook_url"`
}

// SetWebhook changes where the instance delivers events. An empty URL
// selects the default webhook.
//
// PUT /instances/:id/webhook
func (h *Handler) SetWebhook(c *fiber.Ctx) error {
	var req webhookRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	return respond(c, h.gw.SetWebhook(c.UserContext(), c.Params("id"), req.WebhookURL))
}

type proxyRequest struct {
	ProxyURL string `json:"proxy_url"`
}

// PUT /instances/:id/proxy
func (h *Handler) SetProxy(c *fiber.Ctx) error {
	var req proxyRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.ProxyURL == "" {
		return badRequest(c, "proxy_url is required")
	}
	return respond(c, h.gw.SetProxy(c.UserContext(), c.Params("id"), req.ProxyURL))
}

// ── Messages ─────────────────────────────────────────────────────────────────

type sendMessageRequest struct {
	Number string `json:"number"`
	Type   string `json:"type"`
	Body   string `json:"body"`
	Async  bool   `json:"async"`
}

type queuedResponse struct {
	SendID string `json:"send_id"`
	Status string `json:"status"`
}

// SendMessage delivers a message now, or queues it when async is set.
//
// POST /instances/:id/messages
// Body: { "number": "55...", "type": "TEXT"|"AUDIO"|"IMAGE", "body": "...", "async": false }
func (h *Handler) SendMessage(c *fiber.Ctx) error {
	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Number == "" || req.Body == "" {
		return badRequest(c, "number and body are required")
	}

	kind, err := domain.ParseMediaKind(req.Type)
	if err != nil {
		return badRequest(c, "invalid media type")
	}
	media := domain.Media{Kind: kind, Body: req.Body}

	if !req.Async {
		return respond(c, h.gw.Send(c.UserContext(), c.Params("id"), req.Number, media))
	}

	queued, err := h.gw.Enqueue(c.UserContext(), c.Params("id"), req.Number, media)
	if err != nil {
		h.log.Error("enqueue send", "instance_id", c.Params("id"), "err", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "could not queue message"})
	}
	return c.Status(fiber.StatusAccepted).JSON(queuedResponse{SendID: queued.ID.String(), Status: "queued"})
}

// ── Templates ────────────────────────────────────────────────────────────────

// RegisterTemplate submits a template for approval on a CLOUD instance.
//
// POST /instances/:id/templates
func (h *Handler) RegisterTemplate(c *fiber.Ctx) error {
	var tpl domain.Template
	if err := c.BodyParser(&tpl); err != nil {
		return badRequest(c, "invalid request body")
	}
	if tpl.Name == "" || tpl.Body.Text == "" {
		return badRequest(c, "name and body.text are required")
	}
	category, err := domain.ParseTemplateCategory(string(tpl.Category))
	if err != nil {
		return badRequest(c, "invalid template category")
	}
	tpl.Category = category
	return respond(c, h.gw.RegisterTemplate(c.UserContext(), c.Params("id"), tpl))
}

type mediaRequest struct {
	Type string `json:"type"`
	Body string `json:"body"`
}

type sendTemplateRequest struct {
	Number    string         `json:"number"`
	Name      string         `json:"name"`
	Language  string         `json:"language"`
	Header    *mediaRequest  `json:"header"`
	Variables []mediaRequest `json:"variables"`
}

// SendTemplate sends an approved template from a CLOUD instance.
//
// POST /instances/:id/templates/send
// Body: { "number": "55...", "name": "...", "header": {"type":"IMAGE","body":"https://..."},
//
//	"variables": [{"type":"CURRENCY","body":"USD:12.5"}] }
func (h *Handler) SendTemplate(c *fiber.Ctx) error {
	var req sendTemplateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Number == "" || req.Name == "" {
		return badRequest(c, "number and name are required")
	}

	var header domain.Media
	if req.Header != nil {
		kind, err := domain.ParseMediaKind(req.Header.Type)
		if err != nil {
			return badRequest(c, "invalid header type")
		}
		header = domain.Media{Kind: kind, Body: req.Header.Body}
	}

	vars := make([]domain.TemplateVariable, 0, len(req.Variables))
	for _, v := range req.Variables {
		kind, err := domain.ParseVariableKind(v.Type)
		if err != nil {
			return badRequest(c, "invalid variable type")
		}
		vars = append(vars, domain.TemplateVariable{Kind: kind, Body: v.Body})
	}

	return respond(c, h.gw.SendTemplate(c.UserContext(), c.Params("id"), req.Number, header, vars, req.Name, req.Language))
}
