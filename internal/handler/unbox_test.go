package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/deppfellow/case-unboxing/internal/catalog"
	"github.com/deppfellow/case-unboxing/internal/config"
	"github.com/deppfellow/case-unboxing/internal/errs"
	"github.com/deppfellow/case-unboxing/internal/middleware"
	"github.com/deppfellow/case-unboxing/internal/model"
	"github.com/deppfellow/case-unboxing/internal/server"
	"github.com/deppfellow/case-unboxing/internal/service"
	"github.com/deppfellow/case-unboxing/internal/validation"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const knownUnboxer = "8a6f0f6e-6f2b-4c1e-9f57-2d0f1b7c9e11"

type mockUnboxService struct {
	mock.Mock
}

func (m *mockUnboxService) Cases() []catalog.CaseSummary {
	return m.Called().Get(0).([]catalog.CaseSummary)
}

func (m *mockUnboxService) Case(id string) (*catalog.Case, error) {
	args := m.Called(id)
	c, _ := args.Get(0).(*catalog.Case)
	return c, args.Error(1)
}

func (m *mockUnboxService) Unbox(ctx context.Context, caseID, unboxerID string) (model.Item, error) {
	args := m.Called(ctx, caseID, unboxerID)
	return args.Get(0).(model.Item), args.Error(1)
}

func (m *mockUnboxService) Save(ctx context.Context, p model.UnboxPayload, unboxerID string) (*model.UnboxEvent, error) {
	args := m.Called(ctx, p, unboxerID)
	e, _ := args.Get(0).(*model.UnboxEvent)
	return e, args.Error(1)
}

func (m *mockUnboxService) SaveBatch(ctx context.Context, ps []model.UnboxPayload, unboxerID string) (int64, error) {
	args := m.Called(ctx, ps, unboxerID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockUnboxService) List(ctx context.Context, f model.UnboxFilter) ([]model.UnboxEvent, error) {
	args := m.Called(ctx, f)
	events, _ := args.Get(0).([]model.UnboxEvent)
	return events, args.Error(1)
}

func (m *mockUnboxService) Count(ctx context.Context, f model.UnboxFilter) (model.UnboxCount, error) {
	args := m.Called(ctx, f)
	return args.Get(0).(model.UnboxCount), args.Error(1)
}

func newTestServer() *server.Server {
	logger := zerolog.Nop()
	return &server.Server{
		Config: &config.Config{
			Primary:       config.Primary{Env: "test"},
			Observability: config.DefaultObservabilityConfig(),
		},
		Logger: &logger,
	}
}

func newTestEcho(t *testing.T, svc UnboxService) *echo.Echo {
	t.Helper()

	s := newTestServer()
	m := middleware.NewMiddlewares(s)
	h := NewUnboxHandler(s, svc)

	e := echo.New()
	e.HTTPErrorHandler = m.Global.GlobalErrorHandler
	e.GET("/cases", Handle[EmptyRequest](h.Handler, h.ListCases, http.StatusOK))
	e.GET("/cases/:id", Handle[CaseRequest](h.Handler, h.GetCase, http.StatusOK))
	e.POST("/cases/:id/unbox", Handle[CaseRequest](h.Handler, h.Unbox, http.StatusOK))
	e.GET("/unboxes", Handle[UnboxFilterRequest](h.Handler, h.List, http.StatusOK))
	e.POST("/unboxes", Handle[SaveUnboxRequest](h.Handler, h.Save, http.StatusCreated))
	e.POST("/unboxes/batch", Handle[SaveUnboxBatchRequest](h.Handler, h.SaveBatch, http.StatusCreated))
	e.GET("/unboxes/count", Handle[UnboxFilterRequest](h.Handler, h.Count, http.StatusOK))
	e.GET("/unboxer", Handle[EmptyRequest](h.Handler, h.Unboxer, http.StatusOK))
	return e
}

func do(e *echo.Echo, method, target, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func visitor() *http.Cookie {
	return &http.Cookie{Name: middleware.UnboxerCookie, Value: knownUnboxer}
}

func setCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range (&http.Response{Header: rec.Header()}).Cookies() {
		if c.Name == middleware.UnboxerCookie {
			return c
		}
	}
	return nil
}

func payloadJSON(caseImage string) string {
	return fmt.Sprintf(`{"case":{"id":"crate-4001","name":"CS:GO Weapon Case","image":%q},
		"item":{"id":"skin-1","name":"AWP | Lightning Strike","rarity":{"name":"Covert","color":"#eb4b4b"},
		"image":%q}}`, caseImage, validation.TrackerImagePrefix+"awp.png")
}

func TestUnboxHandler_Unbox(t *testing.T) {
	t.Run("returns the drawn item", func(t *testing.T) {
		svc := new(mockUnboxService)
		svc.On("Unbox", mock.Anything, "crate-4001", knownUnboxer).
			Return(model.Item{ID: "skin-1", Name: "AWP | Lightning Strike", Rarity: model.Rarity{Name: model.RarityCovert}}, nil).Once()

		rec := do(newTestEcho(t, svc), http.MethodPost, "/cases/crate-4001/unbox", "", visitor())

		require.Equal(t, http.StatusOK, rec.Code)
		var item model.Item
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &item))
		assert.Equal(t, "skin-1", item.ID)
		assert.Nil(t, setCookie(rec))
		svc.AssertExpectations(t)
	})

	t.Run("new visitor gets a cookie", func(t *testing.T) {
		svc := new(mockUnboxService)
		svc.On("Unbox", mock.Anything, "crate-4001", mock.AnythingOfType("string")).
			Return(model.Item{ID: "skin-1"}, nil).Once()

		rec := do(newTestEcho(t, svc), http.MethodPost, "/cases/crate-4001/unbox", "")

		require.Equal(t, http.StatusOK, rec.Code)
		cookie := setCookie(rec)
		require.NotNil(t, cookie)
		svc.AssertCalled(t, "Unbox", mock.Anything, "crate-4001", cookie.Value)
	})

	t.Run("unknown case is 404", func(t *testing.T) {
		svc := new(mockUnboxService)
		svc.On("Unbox", mock.Anything, "crate-nope", knownUnboxer).
			Return(model.Item{}, fmt.Errorf("%w: crate-nope", service.ErrCaseNotFound)).Once()

		rec := do(newTestEcho(t, svc), http.MethodPost, "/cases/crate-nope/unbox", "", visitor())

		assert.Equal(t, http.StatusNotFound, rec.Code)
		var body errs.HTTPError
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "CASE_NOT_FOUND", body.Code)
	})
}

func TestUnboxHandler_Save(t *testing.T) {
	t.Run("valid payload is stored for the visitor", func(t *testing.T) {
		svc := new(mockUnboxService)
		svc.On("Save", mock.Anything, mock.MatchedBy(func(p model.UnboxPayload) bool {
			return p.Case.ID == "crate-4001" && p.Item.Rarity.Name == model.RarityCovert
		}), knownUnboxer).Return(&model.UnboxEvent{ID: 12, UnboxerID: knownUnboxer}, nil).Once()

		rec := do(newTestEcho(t, svc), http.MethodPost, "/unboxes",
			payloadJSON(validation.SteamImagePrefix+"case"), visitor())

		require.Equal(t, http.StatusCreated, rec.Code)
		var event model.UnboxEvent
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &event))
		assert.Equal(t, int64(12), event.ID)
		svc.AssertExpectations(t)
	})

	t.Run("untrusted image is rejected before the cookie is touched", func(t *testing.T) {
		svc := new(mockUnboxService)

		rec := do(newTestEcho(t, svc), http.MethodPost, "/unboxes", payloadJSON("https://evil.example.com/case.png"))

		require.Equal(t, http.StatusBadRequest, rec.Code)
		var body errs.HTTPError
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Len(t, body.Errors, 1)
		assert.Equal(t, "case.image", body.Errors[0].Field)
		assert.Nil(t, setCookie(rec))
		svc.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("database failure is a generic 500", func(t *testing.T) {
		svc := new(mockUnboxService)
		svc.On("Save", mock.Anything, mock.Anything, knownUnboxer).
			Return(nil, errors.New("dial tcp 10.0.0.3:5432: connection refused")).Once()

		rec := do(newTestEcho(t, svc), http.MethodPost, "/unboxes",
			payloadJSON(validation.SteamImagePrefix+"case"), visitor())

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "10.0.0.3")
	})
}

func TestUnboxHandler_SaveBatch(t *testing.T) {
	t.Run("stores every entry", func(t *testing.T) {
		svc := new(mockUnboxService)
		svc.On("SaveBatch", mock.Anything, mock.MatchedBy(func(ps []model.UnboxPayload) bool {
			return len(ps) == 2
		}), knownUnboxer).Return(int64(2), nil).Once()

		body := `{"unboxes":[` + payloadJSON(validation.SteamImagePrefix+"a") + `,` +
			payloadJSON(validation.SteamImagePrefix+"b") + `]}`
		rec := do(newTestEcho(t, svc), http.MethodPost, "/unboxes/batch", body, visitor())

		require.Equal(t, http.StatusCreated, rec.Code)
		assert.JSONEq(t, `{"inserted":2}`, rec.Body.String())
	})

	t.Run("empty batch is rejected", func(t *testing.T) {
		svc := new(mockUnboxService)

		rec := do(newTestEcho(t, svc), http.MethodPost, "/unboxes/batch", `{"unboxes":[]}`, visitor())

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "SaveBatch", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("invalid entry reports its index", func(t *testing.T) {
		svc := new(mockUnboxService)

		body := `{"unboxes":[` + payloadJSON(validation.SteamImagePrefix+"a") + `,` +
			payloadJSON("https://evil.example.com/b.png") + `]}`
		rec := do(newTestEcho(t, svc), http.MethodPost, "/unboxes/batch", body, visitor())

		require.Equal(t, http.StatusBadRequest, rec.Code)
		var resp errs.HTTPError
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Errors, 1)
		assert.Equal(t, "unboxes[1].case.image", resp.Errors[0].Field)
	})
}

func TestUnboxHandler_ListAndCount(t *testing.T) {
	t.Run("filters are passed through", func(t *testing.T) {
		svc := new(mockUnboxService)
		f := model.UnboxFilter{OnlyCoverts: true, OnlyPersonal: true, UnboxerID: knownUnboxer}
		svc.On("List", mock.Anything, f).Return([]model.UnboxEvent{{ID: 3}}, nil).Once()
		svc.On("Count", mock.Anything, f).Return(model.UnboxCount{Total: 1, Exact: true}, nil).Once()

		e := newTestEcho(t, svc)

		rec := do(e, http.MethodGet, "/unboxes?onlyCoverts=true&onlyPersonal=true", "", visitor())
		require.Equal(t, http.StatusOK, rec.Code)

		rec = do(e, http.MethodGet, "/unboxes/count?onlyCoverts=true&onlyPersonal=true", "", visitor())
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"total":1,"exact":true}`, rec.Body.String())

		svc.AssertExpectations(t)
	})

	t.Run("no personal filter does not set a cookie", func(t *testing.T) {
		svc := new(mockUnboxService)
		svc.On("List", mock.Anything, model.UnboxFilter{}).Return(nil, nil).Once()

		rec := do(newTestEcho(t, svc), http.MethodGet, "/unboxes", "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"unboxes":[]}`, rec.Body.String())
		assert.Nil(t, setCookie(rec))
	})

	t.Run("unfiltered count is flagged as an upper bound", func(t *testing.T) {
		svc := new(mockUnboxService)
		svc.On("Count", mock.Anything, model.UnboxFilter{}).Return(model.UnboxCount{Total: 1234}, nil).Once()

		rec := do(newTestEcho(t, svc), http.MethodGet, "/unboxes/count", "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"total":1234,"exact":false}`, rec.Body.String())
	})
}

func TestUnboxHandler_Cases(t *testing.T) {
	cat, err := catalog.Default()
	require.NoError(t, err)
	cs, _ := cat.Case("crate-4001")

	svc := new(mockUnboxService)
	svc.On("Cases").Return(cat.Cases())
	svc.On("Case", "crate-4001").Return(cs, nil)
	svc.On("Case", "nope").Return(nil, service.ErrCaseNotFound)

	e := newTestEcho(t, svc)

	rec := do(e, http.MethodGet, "/cases", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list CasesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list.Cases, cat.Len())

	rec = do(e, http.MethodGet, "/cases/crate-4001", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got catalog.Case
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "crate-4001", got.ID)
	assert.Len(t, got.Items, len(cs.Items))

	rec = do(e, http.MethodGet, "/cases/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnboxHandler_Unboxer(t *testing.T) {
	e := newTestEcho(t, new(mockUnboxService))

	rec := do(e, http.MethodGet, "/unboxer", "", visitor())
	assert.JSONEq(t, `{"unboxerId":"`+knownUnboxer+`"}`, rec.Body.String())

	rec = do(e, http.MethodGet, "/unboxer", "", &http.Cookie{Name: middleware.UnboxerCookie, Value: "garbage"})
	cookie := setCookie(rec)
	require.NotNil(t, cookie)
	assert.JSONEq(t, `{"unboxerId":"`+cookie.Value+`"}`, rec.Body.String())
}
