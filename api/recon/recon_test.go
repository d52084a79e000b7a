package recon

import (
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"

	"LedgerCorpSuite/internal/config"
)

func routed(router *mux.Router, method, path string) bool {
	req := httptest.NewRequest(method, path, nil)
	var rm mux.RouteMatch
	return router.Match(req, &rm)
}

func TestRouterServesCommittedMatchListing(t *testing.T) {
	router := NewRouter(nil, config.DefaultMatchTuning())

	assert.True(t, routed(router, "GET", "/recon/matches"))
	assert.True(t, routed(router, "GET", "/recon/matches/suggestions"))
	assert.False(t, routed(router, "GET", "/recon/matches/nope"))
}

func TestRouterCoreRoutes(t *testing.T) {
	router := NewRouter(nil, config.DefaultMatchTuning())

	assert.True(t, routed(router, "GET", "/recon/health"))
	assert.True(t, routed(router, "GET", "/recon/statement/formats"))
	assert.True(t, routed(router, "POST", "/recon/statement/preview"))
	assert.True(t, routed(router, "GET", "/recon/transactions"))
	assert.True(t, routed(router, "POST", "/recon/matches/manual"))
	assert.True(t, routed(router, "POST", "/recon/reconciliations/create"))
	assert.True(t, routed(router, "GET", "/recon/reconciliations/summary"))
}
