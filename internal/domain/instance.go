package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ProviderKind identifies the upstream that delivers messages for an instance.
type ProviderKind string

const (
	ProviderEvolution ProviderKind = "EVOLUTION"
	ProviderWuzapi    ProviderKind = "WUZAPI"
	ProviderCloud     ProviderKind = "CLOUD"
)

// ParseProviderKind accepts the stored literal in any letter case.
func ParseProviderKind(s string) (ProviderKind, error) {
	switch k := ProviderKind(strings.ToUpper(strings.TrimSpace(s))); k {
	case ProviderEvolution, ProviderWuzapi, ProviderCloud:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownProvider, s)
}

// Instance is a logical sender identity bound to one provider.
type Instance struct {
	ID            string
	Name          string
	Kind          ProviderKind
	IsActive      bool
	WebhookURL    *string
	WabaID        *string // CLOUD only
	AccessToken   *string
	PhoneNumberID *string // CLOUD only
	CreatedAt     time.Time
}

// Token returns the access token or "" when unset.
func (i Instance) Token() string {
	return deref(i.AccessToken)
}

// SessionToken is the secret a session provider knows the instance by: the
// stored access token, or the instance id for rows created without one.
func (i Instance) SessionToken() string {
	if t := i.Token(); t != "" {
		return t
	}
	return i.ID
}

// Webhook returns the webhook URL or "" when unset.
func (i Instance) Webhook() string {
	return deref(i.WebhookURL)
}

// InstanceFields are the optional columns of a new instance row.
type InstanceFields struct {
	WebhookURL    *string
	WabaID        *string
	AccessToken   *string
	PhoneNumberID *string
}

// NewInstance is the input for creating an instance through the dispatcher.
type NewInstance struct {
	ID          string // generated when empty
	Name        string
	Kind        ProviderKind
	WebhookURL  string
	ProxyURL    string
	WabaID      string // CLOUD
	AccessToken string // CLOUD bearer; for session providers the instance secret
	PIN         string // CLOUD two-step verification PIN
}

// SendRequest is a message queued for asynchronous delivery.
type SendRequest struct {
	ID         uuid.UUID `json:"id"`
	InstanceID string    `json:"instance_id"`
	Number     string    `json:"number"`
	Media      Media     `json:"media"`
	QueuedAt   time.Time `json:"queued_at"`
}

// NewSendRequest stamps a queued send with a fresh id.
func NewSendRequest(instanceID, number string, media Media) SendRequest {
	return SendRequest{
		ID:         uuid.New(),
		InstanceID: instanceID,
		Number:     number,
		Media:      media,
		QueuedAt:   time.Now().UTC(),
	}
}

// StringPtr returns nil for "" so optional columns stay NULL.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Domain errors
var (
	ErrInstanceNotFound        = errors.New("instance not found")
	ErrUnknownProvider         = errors.New("unknown provider kind")
	ErrInvalidMediaKind        = errors.New("invalid media kind")
	ErrInvalidVariableKind     = errors.New("invalid variable kind")
	ErrInvalidTemplateCategory = errors.New("invalid template category")
)
