package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTour(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("X-API-Key"))

		switch r.URL.Path {
		case "/api/v1/tours/tour-ella-trek":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id":"tour-ella-trek","name":"Ella Rock Trek","base_price":5000,"max_group_size":12,"is_active":true}`))
		case "/api/v1/tours/tour-broken":
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("boom"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewHTTPClient(Config{BaseURL: server.URL, APIKey: "test-key"})
	ctx := context.Background()

	t.Run("Found", func(t *testing.T) {
		tour, err := client.GetTour(ctx, "tour-ella-trek")
		require.NoError(t, err)
		require.NotNil(t, tour)
		assert.Equal(t, "Ella Rock Trek", tour.Name)
		assert.Equal(t, int64(5000), tour.BasePrice)
		assert.Equal(t, 12, tour.MaxGroupSize)
		assert.True(t, tour.IsActive)
	})

	t.Run("Not Found Returns Nil", func(t *testing.T) {
		tour, err := client.GetTour(ctx, "tour-nowhere")
		assert.NoError(t, err)
		assert.Nil(t, tour)
	})

	t.Run("Server Error", func(t *testing.T) {
		tour, err := client.GetTour(ctx, "tour-broken")
		assert.Error(t, err)
		assert.Nil(t, tour)
		assert.Contains(t, err.Error(), "status 500")
	})
}
