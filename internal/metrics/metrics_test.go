package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddleware_RecordsRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/customers/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/customers/{id}", "404"))

	req := httptest.NewRequest("GET", "/customers/4821937560", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	after := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/customers/{id}", "404"))
	assert.Equal(t, before+1, after)
}

func TestRecordSession(t *testing.T) {
	sessionsBefore := testutil.ToFloat64(sessions)
	promoBefore := testutil.ToFloat64(promotions.WithLabelValues("Grundlagen"))

	RecordSession("")
	RecordSession("Grundlagen")

	assert.Equal(t, sessionsBefore+2, testutil.ToFloat64(sessions))
	assert.Equal(t, promoBefore+1, testutil.ToFloat64(promotions.WithLabelValues("Grundlagen")))
}

func TestHandler_ExposesLedgerMetrics(t *testing.T) {
	RecordTransaction("debit", "success")

	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "mantrailing_card_ledger_transactions_total")
}
