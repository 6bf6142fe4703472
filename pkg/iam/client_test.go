package iam

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAdminServer(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, Realm: "bms", Timeout: time.Second}), srv
}

func TestLookupClient(t *testing.T) {
	c, _ := newAdminServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/realms/bms/clients", r.URL.Path)
		switch r.URL.Query().Get("clientId") {
		case "backend":
			_ = json.NewEncoder(w).Encode([]map[string]string{{"id": "c0ffee", "clientId": "backend"}})
		default:
			_, _ = w.Write([]byte(`[]`))
		}
	})

	id, err := c.LookupClient(context.Background(), "backend")
	require.NoError(t, err)
	assert.Equal(t, "c0ffee", id)

	_, err = c.LookupClient(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrClientNotFound)
}

func TestListResources(t *testing.T) {
	c, _ := newAdminServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/realms/bms/clients/c0ffee/authz/resource-server/resource", r.URL.Path)
		_, _ = w.Write([]byte(`[
			{"_id":"r1","name":"residents","scopes":[{"id":"s1","name":"GET"},{"id":"s2","name":"POST"}]},
			{"_id":"r2","name":"Staff","scopes":[{"name":"delete"}]}
		]`))
	})

	res, err := c.ListResources(context.Background(), "c0ffee")
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "residents", res[0].Name)
	assert.Equal(t, []Scope{{ID: "s1", Name: "GET"}, {ID: "s2", Name: "POST"}}, res[0].Scopes)
	assert.Equal(t, "r2", res[1].ID)
}

func TestErrors(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		c, _ := newAdminServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		_, err := c.ListResources(context.Background(), "gone")
		var se *StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, http.StatusNotFound, se.Code)
		assert.True(t, IsNotFound(err))
	})

	t.Run("malformed", func(t *testing.T) {
		c, _ := newAdminServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"not":"a list"`))
		})
		_, err := c.ListResources(context.Background(), "x")
		assert.ErrorIs(t, err, ErrMalformed)
		assert.False(t, IsNotFound(err))
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		t.Cleanup(srv.Close)
		t.Cleanup(func() { close(release) })
		c := NewClient(Config{BaseURL: srv.URL, Realm: "bms", Timeout: 50 * time.Millisecond})
		start := time.Now()
		_, err := c.LookupClient(context.Background(), "backend")
		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), 2*time.Second)
	})
}

func TestServiceAccountBearer(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"svc-token","token_type":"Bearer","expires_in":300}`))
	}))
	t.Cleanup(tokenSrv.Close)

	admin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer svc-token", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[{"id":"c0ffee"}]`))
	}))
	t.Cleanup(admin.Close)

	c := NewClient(Config{
		BaseURL: admin.URL, Realm: "bms", Timeout: time.Second,
		TokenURL: tokenSrv.URL, ClientID: "svc", ClientSecret: "secret",
	})
	id, err := c.LookupClient(context.Background(), "backend")
	require.NoError(t, err)
	assert.Equal(t, "c0ffee", id)
}
