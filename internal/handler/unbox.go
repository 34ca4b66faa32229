package handler

import (
	"context"
	"errors"

	"github.com/deppfellow/case-unboxing/internal/catalog"
	"github.com/deppfellow/case-unboxing/internal/errs"
	"github.com/deppfellow/case-unboxing/internal/middleware"
	"github.com/deppfellow/case-unboxing/internal/model"
	"github.com/deppfellow/case-unboxing/internal/server"
	"github.com/deppfellow/case-unboxing/internal/service"
	"github.com/deppfellow/case-unboxing/internal/validation"
	"github.com/labstack/echo/v4"
	"github.com/newrelic/go-agent/v3/newrelic"
)

// UnboxService is the part of service.UnboxService used by the handlers.
type UnboxService interface {
	Cases() []catalog.CaseSummary
	Case(id string) (*catalog.Case, error)
	Unbox(ctx context.Context, caseID, unboxerID string) (model.Item, error)
	Save(ctx context.Context, payload model.UnboxPayload, unboxerID string) (*model.UnboxEvent, error)
	SaveBatch(ctx context.Context, payloads []model.UnboxPayload, unboxerID string) (int64, error)
	List(ctx context.Context, f model.UnboxFilter) ([]model.UnboxEvent, error)
	Count(ctx context.Context, f model.UnboxFilter) (model.UnboxCount, error)
}

type UnboxHandler struct {
	Handler
	service UnboxService
}

func NewUnboxHandler(s *server.Server, svc UnboxService) *UnboxHandler {
	return &UnboxHandler{
		Handler: NewHandler(s),
		service: svc,
	}
}

var caseNotFoundCode = "CASE_NOT_FOUND"

// toHTTPError maps service errors onto API errors. Anything else is left to
// the global error handler.
func toHTTPError(err error) error {
	switch {
	case errors.Is(err, service.ErrCaseNotFound):
		return errs.NewNotFoundError("Case not found", true, &caseNotFoundCode)
	case errors.Is(err, service.ErrInvalidPayload):
		return validation.ToHTTPError(err)
	default:
		return err
	}
}

func (h *UnboxHandler) ListCases(c echo.Context, _ *EmptyRequest) (*CasesResponse, error) {
	return &CasesResponse{Cases: h.service.Cases()}, nil
}

func (h *UnboxHandler) GetCase(c echo.Context, req *CaseRequest) (*catalog.Case, error) {
	cs, err := h.service.Case(req.CaseID)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return cs, nil
}

// Unbox draws one item from the case in the path.
func (h *UnboxHandler) Unbox(c echo.Context, req *CaseRequest) (*model.Item, error) {
	unboxerID := middleware.UnboxerID(c)

	item, err := h.service.Unbox(c.Request().Context(), req.CaseID, unboxerID)
	if err != nil {
		return nil, toHTTPError(err)
	}

	if txn := newrelic.FromContext(c.Request().Context()); txn != nil {
		txn.AddAttribute("item.rarity", item.Rarity.Name)
	}

	return &item, nil
}

// Save stores one result submitted by the client. The visitor id is resolved
// only once the payload is valid.
func (h *UnboxHandler) Save(c echo.Context, req *SaveUnboxRequest) (*model.UnboxEvent, error) {
	event, err := h.service.Save(c.Request().Context(), model.UnboxPayload(*req), middleware.UnboxerID(c))
	if err != nil {
		return nil, toHTTPError(err)
	}
	return event, nil
}

func (h *UnboxHandler) SaveBatch(c echo.Context, req *SaveUnboxBatchRequest) (*SaveUnboxBatchResponse, error) {
	n, err := h.service.SaveBatch(c.Request().Context(), req.Unboxes, middleware.UnboxerID(c))
	if err != nil {
		return nil, toHTTPError(err)
	}
	return &SaveUnboxBatchResponse{Inserted: n}, nil
}

func (h *UnboxHandler) List(c echo.Context, req *UnboxFilterRequest) (*UnboxesResponse, error) {
	events, err := h.service.List(c.Request().Context(), h.filter(c, req))
	if err != nil {
		return nil, toHTTPError(err)
	}

	if events == nil {
		events = []model.UnboxEvent{}
	}
	return &UnboxesResponse{Unboxes: events}, nil
}

func (h *UnboxHandler) Count(c echo.Context, req *UnboxFilterRequest) (*model.UnboxCount, error) {
	count, err := h.service.Count(c.Request().Context(), h.filter(c, req))
	if err != nil {
		return nil, toHTTPError(err)
	}
	return &count, nil
}

// Unboxer returns the visitor id, creating the cookie if needed.
func (h *UnboxHandler) Unboxer(c echo.Context, _ *EmptyRequest) (*UnboxerResponse, error) {
	return &UnboxerResponse{UnboxerID: middleware.UnboxerID(c)}, nil
}

// filter only resolves the visitor id when the personal filter needs it.
func (h *UnboxHandler) filter(c echo.Context, req *UnboxFilterRequest) model.UnboxFilter {
	f := model.UnboxFilter{
		OnlyCoverts:  req.OnlyCoverts,
		OnlyPersonal: req.OnlyPersonal,
	}
	if f.OnlyPersonal {
		f.UnboxerID = middleware.UnboxerID(c)
	}
	return f
}
