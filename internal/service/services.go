package service

import (
	"github.com/deppfellow/case-unboxing/internal/catalog"
	"github.com/deppfellow/case-unboxing/internal/repository"
	"github.com/deppfellow/case-unboxing/internal/server"
)

type Services struct {
	Unbox *UnboxService
}

// NewServices wires the services. The job queue is used for deferred writes
// only when the server has one.
func NewServices(s *server.Server, repos *repository.Repositories, cat *catalog.Catalog) *Services {
	var enqueuer Enqueuer
	if s.Job != nil {
		enqueuer = s.Job
	}

	return &Services{
		Unbox: NewUnboxService(repos.Unbox, cat, catalog.NewDrawer(nil), enqueuer, s.Logger),
	}
}
