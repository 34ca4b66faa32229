// Package repository contains the SQL access of the service. Repositories
// take the pgx pool and return domain models; they never log and never map
// errors to HTTP, that is left to the callers.
package repository

import (
	"github.com/deppfellow/case-unboxing/internal/server"
)

type Repositories struct {
	Unbox *UnboxRepository
}

func NewRepositories(s *server.Server) *Repositories {
	return &Repositories{
		Unbox: NewUnboxRepository(s.DB.Pool),
	}
}
