package container

import (
	"github.com/rs/zerolog"

	"basketsync/internal/application/port"
	"basketsync/internal/application/service"
)

type Container struct {
	repo port.Repository
	pub  port.SnapshotPublisher
	log  zerolog.Logger

	basketService   *service.BasketService
	referenceCache  *service.ReferenceCache
	snapshotService *service.SnapshotService
}

func New(repo port.Repository, pub port.SnapshotPublisher, logger zerolog.Logger) *Container {
	return &Container{
		repo: repo,
		pub:  pub,
		log:  logger,
	}
}

func (c *Container) Repository() port.Repository {
	return c.repo
}

func (c *Container) BasketService() *service.BasketService {
	if c.basketService == nil {
		c.basketService = service.NewBasketService(c.repo)
	}
	return c.basketService
}

func (c *Container) ReferenceCache() *service.ReferenceCache {
	if c.referenceCache == nil {
		c.referenceCache = service.NewReferenceCache(c.repo, c.log)
	}
	return c.referenceCache
}

func (c *Container) SnapshotService() *service.SnapshotService {
	if c.snapshotService == nil {
		c.snapshotService = service.NewSnapshotService(c.pub, c.log)
	}
	return c.snapshotService
}

func (c *Container) Close() error {
	return c.repo.Close()
}
