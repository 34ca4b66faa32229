package handler

import (
	"github.com/deppfellow/case-unboxing/internal/model"
	"github.com/deppfellow/case-unboxing/internal/validation"
)

// EmptyRequest is used by routes that take no input.
type EmptyRequest struct{}

func (r *EmptyRequest) Validate() error {
	return nil
}

// CaseRequest addresses one case by its path id.
type CaseRequest struct {
	CaseID string `param:"id" validate:"required,max=128"`
}

func (r *CaseRequest) Validate() error {
	return validation.Struct(r)
}

// SaveUnboxRequest is one {case, item} result.
type SaveUnboxRequest model.UnboxPayload

func (r *SaveUnboxRequest) Validate() error {
	return validation.Struct(r)
}

// SaveUnboxBatchRequest carries 1 to 100 results stored together.
type SaveUnboxBatchRequest struct {
	Unboxes []model.UnboxPayload `json:"unboxes" validate:"required,min=1,max=100,dive"`
}

func (r *SaveUnboxBatchRequest) Validate() error {
	return validation.Struct(r)
}

// UnboxFilterRequest holds the query filters of the list and count routes.
type UnboxFilterRequest struct {
	OnlyCoverts  bool `query:"onlyCoverts"`
	OnlyPersonal bool `query:"onlyPersonal"`
}

func (r *UnboxFilterRequest) Validate() error {
	return nil
}
