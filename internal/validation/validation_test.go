package validation

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/deppfellow/case-unboxing/internal/errs"
	"github.com/deppfellow/case-unboxing/internal/model"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validPayload() model.UnboxPayload {
	return model.UnboxPayload{
		Case: model.Case{
			ID:    "crate-4001",
			Name:  "CS:GO Weapon Case",
			Image: SteamImagePrefix + "case.png",
		},
		Item: model.Item{
			ID:     "skin-3",
			Name:   "AWP | Lightning Strike",
			Rarity: model.Rarity{Name: model.RarityCovert},
			Image:  TrackerImagePrefix + "awp.png",
		},
	}
}

func TestStruct_TrustedImage(t *testing.T) {
	t.Run("accepts both trusted prefixes", func(t *testing.T) {
		assert.NoError(t, Struct(validPayload()))
	})

	t.Run("rejects untrusted host", func(t *testing.T) {
		p := validPayload()
		p.Item.Image = "https://evil.example.com/awp.png"

		err := Struct(p)
		require.Error(t, err)

		_, fields := extractValidationError(err)
		require.Len(t, fields, 1)
		assert.Equal(t, "item.image", fields[0].Field)
		assert.Equal(t, "must be hosted on a trusted image host", fields[0].Error)
	})

	t.Run("prefix must be at the start", func(t *testing.T) {
		p := validPayload()
		p.Case.Image = "https://evil.example.com/?u=" + SteamImagePrefix

		assert.Error(t, Struct(p))
	})

	t.Run("phase is optional", func(t *testing.T) {
		p := validPayload()
		p.Item.Phase = nil
		assert.NoError(t, Struct(p))
	})

	t.Run("rarity name is required", func(t *testing.T) {
		p := validPayload()
		p.Item.Rarity = model.Rarity{}

		_, fields := extractValidationError(Struct(p))
		require.NotEmpty(t, fields)
		assert.Equal(t, "item.rarity", fields[0].Field)
	})

	t.Run("ids and names are required", func(t *testing.T) {
		p := validPayload()
		p.Case.ID = ""
		p.Item.Name = ""

		_, fields := extractValidationError(Struct(p))
		paths := make([]string, 0, len(fields))
		for _, f := range fields {
			paths = append(paths, f.Field)
		}
		assert.ElementsMatch(t, []string{"case.id", "item.name"}, paths)
	})
}

func TestIsTrustedImage(t *testing.T) {
	assert.True(t, IsTrustedImage(SteamImagePrefix+"x"))
	assert.True(t, IsTrustedImage(TrackerImagePrefix+"x"))
	assert.False(t, IsTrustedImage("http://community.cloudflare.steamstatic.com/economy/image/x"))
	assert.False(t, IsTrustedImage(""))
}

func TestIsValidUUID(t *testing.T) {
	assert.True(t, IsValidUUID("8a6f0f6e-6f2b-4c1e-9f57-2d0f1b7c9e11"))
	assert.False(t, IsValidUUID("8a6f0f6e6f2b4c1e9f572d0f1b7c9e11"))
	assert.False(t, IsValidUUID("not-a-uuid"))
	assert.False(t, IsValidUUID(""))

	t.Run("only version 4 is accepted", func(t *testing.T) {
		assert.True(t, IsValidUUID("8A6F0F6E-6F2B-4C1E-BF57-2D0F1B7C9E11"))
		assert.False(t, IsValidUUID("6ba7b810-9dad-11d1-80b4-00c04fd430c8"))
		assert.False(t, IsValidUUID("00000000-0000-0000-0000-000000000000"))
		assert.False(t, IsValidUUID("8a6f0f6e-6f2b-4c1e-7f57-2d0f1b7c9e11"))
	})
}

type saveRequest model.UnboxPayload

func (r *saveRequest) Validate() error {
	return Struct(r)
}

func TestBindAndValidate(t *testing.T) {
	e := echo.New()

	t.Run("malformed json is a bad request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"case":`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		c := e.NewContext(req, httptest.NewRecorder())

		err := BindAndValidate(c, &saveRequest{})

		var httpErr *errs.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusBadRequest, httpErr.Status)
	})

	t.Run("field errors are reported", func(t *testing.T) {
		body := `{"case":{"id":"crate-4001","name":"Case","image":"https://bad.example/c.png"},
			"item":{"id":"i","name":"n","rarity":{"name":"Covert"},"image":"` + TrackerImagePrefix + `i.png"}}`
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		c := e.NewContext(req, httptest.NewRecorder())

		err := BindAndValidate(c, &saveRequest{})

		var httpErr *errs.HTTPError
		require.ErrorAs(t, err, &httpErr)
		require.Len(t, httpErr.Errors, 1)
		assert.Equal(t, "case.image", httpErr.Errors[0].Field)
	})
}

func TestToHTTPError_CustomErrors(t *testing.T) {
	err := CustomValidationErrors{{Field: "unboxes", Message: "too many"}}

	httpErr := ToHTTPError(err)
	assert.Equal(t, http.StatusBadRequest, httpErr.Status)
	assert.Equal(t, []errs.FieldError{{Field: "unboxes", Error: "too many"}}, httpErr.Errors)
}
