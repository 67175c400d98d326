package router

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionEndpoint(t *testing.T) {
	mux := Admin("d6cd1e2bd19e03a81132a23b2025920577f84e37")

	recorder := httptest.NewRecorder()
	mux.ServeHTTP(recorder, httptest.NewRequest("GET", "/version", nil))

	var payload struct {
		Revision string `json:"revision"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
	assert.Equal(t, "d6cd1e2bd19e03a81132a23b2025920577f84e37", payload.Revision)
}

func TestVersionEndpointDefault(t *testing.T) {
	mux := Admin("")

	recorder := httptest.NewRecorder()
	mux.ServeHTTP(recorder, httptest.NewRequest("GET", "/version", nil))

	var payload struct {
		Revision string `json:"revision"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
	assert.Equal(t, "not-set", payload.Revision)
}
