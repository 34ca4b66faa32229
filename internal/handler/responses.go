package handler

import (
	"github.com/deppfellow/case-unboxing/internal/catalog"
	"github.com/deppfellow/case-unboxing/internal/model"
)

type CasesResponse struct {
	Cases []catalog.CaseSummary `json:"cases"`
}

type UnboxesResponse struct {
	Unboxes []model.UnboxEvent `json:"unboxes"`
}

type SaveUnboxBatchResponse struct {
	Inserted int64 `json:"inserted"`
}

type UnboxerResponse struct {
	UnboxerID string `json:"unboxerId"`
}
