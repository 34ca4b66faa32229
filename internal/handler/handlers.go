package handler

import (
	"github.com/deppfellow/case-unboxing/internal/server"
	"github.com/deppfellow/case-unboxing/internal/service"
)

type Handlers struct {
	Health  *HealthHandler
	OpenAPI *OpenAPIHandler
	Unbox   *UnboxHandler
}

func NewHandlers(s *server.Server, services *service.Services) *Handlers {
	return &Handlers{
		Health:  NewHealthHandler(s),
		OpenAPI: NewOpenAPIHandler(s),
		Unbox:   NewUnboxHandler(s, services.Unbox),
	}
}
