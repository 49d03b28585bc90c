package shared

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type taggedPayload struct {
	Name string `json:"name" validate:"required"`
}

type selfValidatingPayload struct {
	ok bool
}

func (p selfValidatingPayload) Validate() error {
	if !p.ok {
		return errors.New("not ok")
	}
	return nil
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	t.Run("valid body", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"fox"}`))

		var payload taggedPayload
		require.NoError(t, DecodeJSON(req, &payload))
		assert.Equal(t, "fox", payload.Name)
	})

	t.Run("empty body", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodPost, "/", nil)

		var payload taggedPayload
		assert.ErrorIs(t, DecodeJSON(req, &payload), ErrEmptyBody)
	})

	t.Run("malformed body", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":`))

		var payload taggedPayload
		err := DecodeJSON(req, &payload)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrEmptyBody)
	})
}

func TestValidateRequest(t *testing.T) {
	t.Parallel()

	assert.Error(t, ValidateRequest(taggedPayload{}))
	assert.NoError(t, ValidateRequest(taggedPayload{Name: "fox"}))

	// A Validate method takes precedence over struct tags.
	assert.Error(t, ValidateRequest(selfValidatingPayload{ok: false}))
	assert.NoError(t, ValidateRequest(selfValidatingPayload{ok: true}))
}
