package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstrumentHandlerUsesRoutePattern(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /expenses/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	h := InstrumentHandler(mux)

	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/expenses/{id}", "404"))

	for _, id := range []string{"1", "2", "3"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/expenses/"+id, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	}

	after := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/expenses/{id}", "404"))
	assert.Equal(t, float64(3), after-before)
}

func TestRecordOutboxDelivery(t *testing.T) {
	before := testutil.ToFloat64(outboxDeliveries.WithLabelValues("join_household", "sent"))
	RecordOutboxDelivery("join_household", "sent")
	after := testutil.ToFloat64(outboxDeliveries.WithLabelValues("join_household", "sent"))
	assert.Equal(t, float64(1), after-before)
}

func TestHandlerExposesMetrics(t *testing.T) {
	SetWebsocketClients(2)

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "homewise_websocket_clients 2"))
}

func TestRouteLabelFallback(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/households/my/members/7", nil)
	assert.Equal(t, "/households", routeLabel(r))

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "/", routeLabel(r))
}
