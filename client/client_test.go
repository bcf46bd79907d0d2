package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tokengate/tokengate/client"
)

func toolServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	requireBearer := func(w http.ResponseWriter, r *http.Request) bool {
		if r.Header.Get("Authorization") != "Bearer tok1" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
			return false
		}
		return true
	}

	mux.HandleFunc("GET /tools", func(w http.ResponseWriter, r *http.Request) {
		if !requireBearer(w, r) {
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"tools": []map[string]any{
				{"name": "get_current_time", "description": "Get the current server time."},
				{"name": "calculate_square", "description": "Calculate the square of a number."},
			},
		})
	})
	mux.HandleFunc("POST /tools/call", func(w http.ResponseWriter, r *http.Request) {
		if !requireBearer(w, r) {
			return
		}
		var req struct {
			Name      string         `json:"name"`
			Arguments map[string]any `json:"arguments"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		switch req.Name {
		case "calculate_square":
			n := req.Arguments["number"].(float64)
			json.NewEncoder(w).Encode(map[string]any{"input": n, "square": n * n})
		default:
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "unknown_tool"})
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestListTools(t *testing.T) {
	srv := toolServer(t)
	c := client.New(srv.URL, "tok1", srv.Client())

	tools, err := c.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 2)
	require.Equal(t, "get_current_time", tools[0].Name)
}

func TestCallTool(t *testing.T) {
	srv := toolServer(t)
	c := client.New(srv.URL, "tok1", srv.Client())

	result, err := c.CallTool(context.Background(), "calculate_square", map[string]any{"number": 7.0})
	require.NoError(t, err)
	require.Equal(t, float64(49), result["square"])
}

func TestUnauthorizedSurfacesAPIError(t *testing.T) {
	srv := toolServer(t)
	c := client.New(srv.URL, "wrong-token", srv.Client())

	_, err := c.ListTools(context.Background())

	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.Status)
}

func TestUnknownToolSurfacesAPIError(t *testing.T) {
	srv := toolServer(t)
	c := client.New(srv.URL, "tok1", srv.Client())

	_, err := c.CallTool(context.Background(), "rm_rf", nil)

	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusNotFound, apiErr.Status)
}
