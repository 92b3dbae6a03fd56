package cache

import (
	"context"
	"time"

	"wa-gateway/internal/domain"
	"wa-gateway/internal/ports"

	gocache "github.com/patrickmn/go-cache"
)

// Instances keeps recently fetched instance rows in memory so the send path
// does not hit the database for every message. Writes through it evict the
// affected id; writes made elsewhere become visible after ttl.
type Instances struct {
	repo   ports.InstanceRepository
	writer ports.InstanceWriter
	rows   *gocache.Cache
}

func NewInstances(repo ports.InstanceRepository, writer ports.InstanceWriter, ttl time.Duration) *Instances {
	return &Instances{
		repo:   repo,
		writer: writer,
		rows:   gocache.New(ttl, 2*ttl),
	}
}

// FetchInstance serves from memory when possible. Misses, including
// ErrInstanceNotFound, are never cached.
func (c *Instances) FetchInstance(ctx context.Context, id string) (domain.Instance, error) {
	if v, ok := c.rows.Get(id); ok {
		return v.(domain.Instance), nil
	}

	inst, err := c.repo.FetchInstance(ctx, id)
	if err != nil {
		return domain.Instance{}, err
	}
	c.rows.SetDefault(id, inst)
	return inst, nil
}

func (c *Instances) RetrieveInstances(ctx context.Context) ([]domain.Instance, error) {
	all, err := c.repo.RetrieveInstances(ctx)
	if err != nil {
		return nil, err
	}
	for _, inst := range all {
		c.rows.SetDefault(inst.ID, inst)
	}
	return all, nil
}

// InsertInstance and DeleteInstance evict id again once the write returns,
// since a concurrent fetch may have cached the old row in between.
func (c *Instances) InsertInstance(ctx context.Context, id, name string, kind domain.ProviderKind, fields domain.InstanceFields) domain.Outcome {
	c.rows.Delete(id)
	defer c.rows.Delete(id)
	return c.writer.InsertInstance(ctx, id, name, kind, fields)
}

func (c *Instances) DeleteInstance(ctx context.Context, id string) domain.Outcome {
	c.rows.Delete(id)
	defer c.rows.Delete(id)
	return c.writer.DeleteInstance(ctx, id)
}

func (c *Instances) InsertLog(ctx context.Context, level, text string) domain.Outcome {
	return c.writer.InsertLog(ctx, level, text)
}
