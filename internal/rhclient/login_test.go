package rhclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rh-portal-be/internal/rhclient"
)

func TestLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		if r.URL.Path != "/auth/login" || req["password"] != "certa" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-" + req["login"]})
	}))
	defer srv.Close()

	hc := rhclient.NewHTTPClient(srv.URL + "/")
	defer hc.Close()

	tok, err := rhclient.Login(context.Background(), hc, "M0021", "certa")
	require.NoError(t, err)
	assert.Equal(t, "tok-M0021", tok)

	_, err = rhclient.Login(context.Background(), hc, "M0021", "errada")
	assert.ErrorIs(t, err, rhclient.ErrUnauthorized)
}
