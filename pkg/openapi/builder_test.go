package openapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bldgate/pkg/authz"
)

func TestServeHandlerListsPermissions(t *testing.T) {
	rt := authz.NewRouteTable()
	rt.Add(http.MethodGet, "/healthz", "Health", authz.SkipAuthorization())
	h := ServeHandler("bldgate", "test", rt)
	rt.Add(http.MethodDelete, "/api/{schema}/Staff/{id}", "Staff")

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var doc struct {
		Paths map[string]map[string]struct {
			Permission map[string]string `json:"x-required-permission"`
			Parameters []map[string]any  `json:"parameters"`
			Responses  map[string]any    `json:"responses"`
			Security   []map[string]any  `json:"security"`
		} `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))

	del := doc.Paths["/api/{schema}/Staff/{id}"]["delete"]
	assert.Equal(t, map[string]string{"resource": "staff", "scope": "DELETE"}, del.Permission)
	assert.Len(t, del.Parameters, 2)
	assert.Contains(t, del.Responses, "403")
	assert.Contains(t, del.Responses, "404")

	health := doc.Paths["/healthz"]["get"]
	assert.Nil(t, health.Permission)
	assert.NotNil(t, health.Security)
	assert.Empty(t, health.Security)
	assert.NotContains(t, health.Responses, "403")
}
