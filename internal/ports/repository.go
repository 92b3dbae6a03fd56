package ports

import (
	"context"

	"wa-gateway/internal/domain"
)

// InstanceRepository is the read side of the instance directory.
type InstanceRepository interface {
	// FetchInstance returns domain.ErrInstanceNotFound when no row matches.
	FetchInstance(ctx context.Context, id string) (domain.Instance, error)

	// RetrieveInstances returns every instance; an empty slice is not an error.
	RetrieveInstances(ctx context.Context) ([]domain.Instance, error)
}

// InstanceWriter mutates the instance directory. Failures are reported as
// outcomes carrying a synthesised "code" so callers treat them like HTTP results.
type InstanceWriter interface {
	InsertInstance(ctx context.Context, id, name string, kind domain.ProviderKind, fields domain.InstanceFields) domain.Outcome
	DeleteInstance(ctx context.Context, id string) domain.Outcome
	InsertLog(ctx context.Context, level, text string) domain.Outcome
}

// QRStore reads pairing QR codes from the session provider's own database.
type QRStore interface {
	// QRCode returns "" when no user matches or the code is not stored yet.
	QRCode(ctx context.Context, token string) (string, error)
}
