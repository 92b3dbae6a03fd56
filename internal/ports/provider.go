package ports

import (
	"context"

	"wa-gateway/internal/domain"
)

// CloudProvider abstracts the first-party Cloud API.
type CloudProvider interface {
	// RegisterNumber subscribes the app to the WABA, discovers its first phone
	// number and registers it. The discovered phone number id is returned
	// alongside the outcome, empty when discovery did not get that far.
	RegisterNumber(ctx context.Context, wabaID, token, pin string) (domain.Outcome, string)
	SendMessage(ctx context.Context, to string, media domain.Media, phoneNumberID, token string) domain.Outcome
	SendTemplate(ctx context.Context, to string, header domain.Media, phoneNumberID, token string, vars []domain.TemplateVariable, name, lang string) domain.Outcome
	RegisterTemplate(ctx context.Context, wabaID, token string, tpl domain.Template) domain.Outcome
}

// SessionProvider is the capability set shared by the self-hosted providers.
// Evolution addresses instances by name, Wuzapi by instance token; inst
// carries both and each adapter picks what it needs.
type SessionProvider interface {
	CreateInstance(ctx context.Context, inst domain.Instance, proxyURL string) domain.Outcome
	ConnectInstance(ctx context.Context, inst domain.Instance) domain.Outcome
	LogoutInstance(ctx context.Context, inst domain.Instance) domain.Outcome
	DeleteInstance(ctx context.Context, inst domain.Instance) domain.Outcome
	SetWebhook(ctx context.Context, inst domain.Instance, webhookURL string) domain.Outcome
	SendMessage(ctx context.Context, inst domain.Instance, to string, media domain.Media) domain.Outcome
}

// QRProvider is implemented by session providers that expose the pairing QR
// through a dedicated endpoint.
type QRProvider interface {
	GetQRCode(ctx context.Context, inst domain.Instance) domain.Outcome
}

// ProxyProvider is implemented by session providers that can change the
// proxy of an existing instance.
type ProxyProvider interface {
	SetProxy(ctx context.Context, inst domain.Instance, proxyURL string) domain.Outcome
}
