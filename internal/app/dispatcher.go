package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"wa-gateway/internal/domain"
	"wa-gateway/internal/ports"

	"github.com/google/uuid"
)

const (
	msgInstanceNotFound = "couldn't find any connections with this name."
	msgInvalidKind      = "instance type is not valid."
	msgCloudOnly        = "instance type not compatible, should be CLOUD"
	msgCloudSendCreds   = "missing phone_number_id or access_token for CLOUD instance"
	msgCloudWABACreds   = "missing waba_id or access_token for CLOUD instance"
)

// Providers groups the upstream adapters the dispatcher selects from.
type Providers struct {
	Cloud     ports.CloudProvider
	Evolution ports.SessionProvider
	Wuzapi    ports.SessionProvider
}

// Dispatcher routes every gateway operation to the adapter that owns the
// instance's provider kind. It returns outcomes, never errors, for anything
// an upstream or a validation step can reject.
type Dispatcher struct {
	repo           ports.InstanceRepository
	writer         ports.InstanceWriter
	providers      Providers
	publisher      ports.SendPublisher
	defaultWebhook string
	log            *slog.Logger
}

// NewDispatcher wires the dispatcher with its dependencies. publisher may be
// nil, which disables asynchronous sends.
func NewDispatcher(
	repo ports.InstanceRepository,
	writer ports.InstanceWriter,
	providers Providers,
	publisher ports.SendPublisher,
	defaultWebhook string,
	log *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		repo:           repo,
		writer:         writer,
		providers:      providers,
		publisher:      publisher,
		defaultWebhook: defaultWebhook,
		log:            log,
	}
}

func (d *Dispatcher) fetch(ctx context.Context, id string) (domain.Instance, domain.Outcome, bool) {
	inst, err := d.repo.FetchInstance(ctx, id)
	if errors.Is(err, domain.ErrInstanceNotFound) {
		return domain.Instance{}, domain.Err(msgInstanceNotFound), false
	}
	if err != nil {
		d.log.Error("fetch instance", "instance_id", id, "err", err)
		return domain.Instance{}, domain.Err(err.Error()), false
	}
	return inst, domain.Outcome{}, true
}

func (d *Dispatcher) session(kind domain.ProviderKind) (ports.SessionProvider, bool) {
	var p ports.SessionProvider
	switch kind {
	case domain.ProviderEvolution:
		p = d.providers.Evolution
	case domain.ProviderWuzapi:
		p = d.providers.Wuzapi
	}
	return p, p != nil
}

// Send delivers one message through the instance's provider and returns the
// adapter outcome untouched.
func (d *Dispatcher) Send(ctx context.Context, instanceID, number string, media domain.Media) domain.Outcome {
	inst, out, ok := d.fetch(ctx, instanceID)
	if !ok {
		return out
	}

	if inst.Kind == domain.ProviderCloud {
		if inst.PhoneNumberID == nil || *inst.PhoneNumberID == "" || inst.Token() == "" {
			return domain.Err(msgCloudSendCreds)
		}
		return d.providers.Cloud.SendMessage(ctx, number, media, *inst.PhoneNumberID, inst.Token())
	}

	sess, ok := d.session(inst.Kind)
	if !ok {
		return domain.Err(msgInvalidKind)
	}
	return sess.SendMessage(ctx, inst, number, media)
}

// Enqueue queues a send for the worker and returns the queued request.
func (d *Dispatcher) Enqueue(ctx context.Context, instanceID, number string, media domain.Media) (domain.SendRequest, error) {
	if d.publisher == nil {
		return domain.SendRequest{}, errors.New("async sends are not configured")
	}
	if _, err := domain.ParseMediaKind(string(media.Kind)); err != nil {
		return domain.SendRequest{}, err
	}

	req := domain.NewSendRequest(instanceID, number, media)
	if err := d.publisher.Publish(ctx, req); err != nil {
		return domain.SendRequest{}, fmt.Errorf("publish send: %w", err)
	}
	d.log.Info("send queued", "send_id", req.ID, "instance_id", instanceID)
	return req, nil
}

// HandleQueued is the worker side of Enqueue. An ERR outcome becomes an
// error so the consumer drops the delivery.
func (d *Dispatcher) HandleQueued(ctx context.Context, req domain.SendRequest) error {
	out := d.Send(ctx, req.InstanceID, req.Number, req.Media)
	if !out.IsOK() {
		return fmt.Errorf("send %s: %s", req.ID, out.ErrorText())
	}
	d.log.Info("queued send delivered", "send_id", req.ID, "instance_id", req.InstanceID)
	return nil
}

// CreateInstance creates the instance upstream and, once that succeeds,
// records it in the directory.
func (d *Dispatcher) CreateInstance(ctx context.Context, n domain.NewInstance) domain.Outcome {
	id := n.ID
	if id == "" {
		id = uuid.NewString()
	}
	token := n.AccessToken
	if token == "" {
		token = id
	}
	webhook := n.WebhookURL
	if webhook == "" {
		webhook = d.defaultWebhook
	}

	fields := domain.InstanceFields{
		WebhookURL:  domain.StringPtr(webhook),
		AccessToken: domain.StringPtr(token),
	}

	var out domain.Outcome
	switch n.Kind {
	case domain.ProviderCloud:
		if n.WabaID == "" || n.AccessToken == "" {
			return domain.Err(msgCloudWABACreds)
		}
		var phoneID string
		out, phoneID = d.providers.Cloud.RegisterNumber(ctx, n.WabaID, n.AccessToken, n.PIN)
		if !out.IsOK() {
			return out
		}
		fields.WabaID = domain.StringPtr(n.WabaID)
		fields.PhoneNumberID = domain.StringPtr(phoneID)

	case domain.ProviderEvolution, domain.ProviderWuzapi:
		sess, ok := d.session(n.Kind)
		if !ok {
			return domain.Err(msgInvalidKind)
		}
		out = sess.CreateInstance(ctx, domain.Instance{
			ID:          id,
			Name:        n.Name,
			Kind:        n.Kind,
			IsActive:    true,
			WebhookURL:  fields.WebhookURL,
			AccessToken: fields.AccessToken,
		}, n.ProxyURL)
		if !out.IsOK() {
			return out
		}

	default:
		return domain.Err(msgInvalidKind)
	}

	if row := d.writer.InsertInstance(ctx, id, n.Name, n.Kind, fields); !row.IsOK() {
		d.log.Error("instance created upstream but not stored", "instance_id", id, "error", row.ErrorText())
		return row
	}

	out.Body["message"] = "Instance created successfully!"
	out.Body["instance_id"] = id
	d.audit(ctx, "INFO", "instance %s (%s) created", id, n.Kind)
	return out
}

// ConnectInstance starts the session. For Wuzapi the pairing QR is fetched
// right after and the connect response travels as connection_status.
func (d *Dispatcher) ConnectInstance(ctx context.Context, instanceID string) domain.Outcome {
	inst, out, ok := d.fetch(ctx, instanceID)
	if !ok {
		return out
	}
	sess, ok := d.session(inst.Kind)
	if !ok {
		return domain.Err(msgInvalidKind)
	}

	conn := sess.ConnectInstance(ctx, inst)
	if !conn.IsOK() {
		return conn
	}
	qp, ok := sess.(ports.QRProvider)
	if !ok {
		return conn
	}

	qr := qp.GetQRCode(ctx, inst)
	if qr.IsOK() {
		qr.Body["message"] = "Instance connected successfully!"
		qr.Body["connection_status"] = conn.Body
	}
	return qr
}

func (d *Dispatcher) LogoutInstance(ctx context.Context, instanceID string) domain.Outcome {
	inst, out, ok := d.fetch(ctx, instanceID)
	if !ok {
		return out
	}
	sess, ok := d.session(inst.Kind)
	if !ok {
		return domain.Err(msgInvalidKind)
	}

	out = sess.LogoutInstance(ctx, inst)
	if out.IsOK() {
		d.audit(ctx, "INFO", "instance %s logged out", inst.ID)
	}
	return out
}

// DeleteInstance removes the directory row first, then the upstream
// instance. CLOUD instances only have the row.
func (d *Dispatcher) DeleteInstance(ctx context.Context, instanceID string) domain.Outcome {
	inst, out, ok := d.fetch(ctx, instanceID)
	if !ok {
		return out
	}

	row := d.writer.DeleteInstance(ctx, inst.ID)
	if !row.IsOK() {
		return row
	}
	d.audit(ctx, "INFO", "instance %s deleted", inst.ID)

	if inst.Kind == domain.ProviderCloud {
		return row
	}
	sess, ok := d.session(inst.Kind)
	if !ok {
		return domain.Err(msgInvalidKind)
	}
	return sess.DeleteInstance(ctx, inst)
}

// SetWebhook points the instance's events at webhookURL, or at the default
// webhook when it is empty.
func (d *Dispatcher) SetWebhook(ctx context.Context, instanceID, webhookURL string) domain.Outcome {
	inst, out, ok := d.fetch(ctx, instanceID)
	if !ok {
		return out
	}
	sess, ok := d.session(inst.Kind)
	if !ok {
		return domain.Err(msgInvalidKind)
	}
	if webhookURL == "" {
		webhookURL = d.defaultWebhook
	}
	return sess.SetWebhook(ctx, inst, webhookURL)
}

func (d *Dispatcher) SetProxy(ctx context.Context, instanceID, proxyURL string) domain.Outcome {
	inst, out, ok := d.fetch(ctx, instanceID)
	if !ok {
		return out
	}
	sess, _ := d.session(inst.Kind)
	pp, ok := sess.(ports.ProxyProvider)
	if !ok {
		return domain.Err(msgInvalidKind)
	}
	return pp.SetProxy(ctx, inst, proxyURL)
}

// GetQRCode returns the pairing QR. Providers without a QR endpoint hand it
// out on connect.
func (d *Dispatcher) GetQRCode(ctx context.Context, instanceID string) domain.Outcome {
	inst, out, ok := d.fetch(ctx, instanceID)
	if !ok {
		return out
	}
	sess, ok := d.session(inst.Kind)
	if !ok {
		return domain.Err(msgInvalidKind)
	}
	if qp, ok := sess.(ports.QRProvider); ok {
		return qp.GetQRCode(ctx, inst)
	}
	return sess.ConnectInstance(ctx, inst)
}

func (d *Dispatcher) ListInstances(ctx context.Context) ([]domain.Instance, error) {
	return d.repo.RetrieveInstances(ctx)
}

// SendTemplate sends an approved template from a CLOUD instance.
func (d *Dispatcher) SendTemplate(
	ctx context.Context,
	instanceID, number string,
	header domain.Media,
	vars []domain.TemplateVariable,
	name, lang string,
) domain.Outcome {
	inst, out, ok := d.fetch(ctx, instanceID)
	if !ok {
		return out
	}
	if inst.Kind != domain.ProviderCloud {
		return domain.Err(msgCloudOnly)
	}
	if inst.PhoneNumberID == nil || *inst.PhoneNumberID == "" || inst.Token() == "" {
		return domain.Err(msgCloudSendCreds)
	}
	return d.providers.Cloud.SendTemplate(ctx, number, header, *inst.PhoneNumberID, inst.Token(), vars, name, lang)
}

// RegisterTemplate submits tpl for approval on the instance's WABA.
func (d *Dispatcher) RegisterTemplate(ctx context.Context, instanceID string, tpl domain.Template) domain.Outcome {
	inst, out, ok := d.fetch(ctx, instanceID)
	if !ok {
		return out
	}
	if inst.Kind != domain.ProviderCloud {
		return domain.Err(msgCloudOnly)
	}
	if inst.WabaID == nil || *inst.WabaID == "" || inst.Token() == "" {
		return domain.Err(msgCloudWABACreds)
	}

	out = d.providers.Cloud.RegisterTemplate(ctx, *inst.WabaID, inst.Token(), tpl)
	if out.IsOK() {
		d.audit(ctx, "INFO", "template %s registered for instance %s", tpl.Name, inst.ID)
	}
	return out
}

// audit appends a row to the log table. Failures are only logged.
func (d *Dispatcher) audit(ctx context.Context, level, format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	if out := d.writer.InsertLog(ctx, level, text); !out.IsOK() {
		d.log.Error("insert log", "text", text, "error", out.ErrorText())
	}
}
