package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportImport(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/agent/report", `[{"address":"10.0.0.5"},{"address":"192.168.1.20","displayName":"nas"}]`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	t.Run("yaml export", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/export/yaml", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/yaml", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), ".yaml")
		assert.Contains(t, rec.Body.String(), "address: 10.0.0.5")
		assert.Contains(t, rec.Body.String(), "display_name: nas")
	})

	t.Run("ansible export", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/export/ansible", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "internal_lan:")
		assert.Contains(t, rec.Body.String(), "ansible_host: 192.168.1.20")
	})

	t.Run("unknown format", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/export/csv", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = env.do(t, http.MethodPost, "/api/import/csv", "x")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("json import skips existing", func(t *testing.T) {
		body := `{"devices":[{"address":"10.0.0.5","displayName":"ignored"},{"address":"10.0.0.6","status":"Maintenance"},{"address":"bogus"}]}`
		rec := env.do(t, http.MethodPost, "/api/import/json", body)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		resp := decodeBody[ImportResponse](t, rec)
		assert.True(t, resp.Success)
		assert.Equal(t, 1, resp.Created)
		assert.Equal(t, 1, resp.Skipped)
		assert.Len(t, resp.Errors, 1)

		rec = env.do(t, http.MethodGet, "/api/devices/10.0.0.5", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Device-5")
	})

	t.Run("malformed document", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/import/yaml", "devices: [")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
