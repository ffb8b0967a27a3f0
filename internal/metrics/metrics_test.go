package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-ocr/constants"
)

func TestRecordDocument(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordDocument(constants.UtilityBill, 0.3, []constants.RiskSignal{constants.TotalMismatch}, 2*time.Second)
	m.RecordDocument(constants.UtilityBill, 0, nil, time.Second)
	m.RecordDocument(constants.ProductInvoice, 0, nil, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.documents.WithLabelValues("utility_bill")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.documents.WithLabelValues("product_invoice")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.riskFlags.WithLabelValues("TOTAL_MISMATCH")))
	assert.Equal(t, 3, testutil.CollectAndCount(m.duration))
}

func TestRecordFailureAndQueue(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordFailure("OCR_UNAVAILABLE")
	m.RecordFailure("")
	m.RecordEnqueued()
	m.SetQueueDepth(4)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("OCR_UNAVAILABLE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("UNKNOWN")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.enqueued))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.queueDepth))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordDocument(constants.Generic, 0, nil, 0)
		m.RecordFailure("X")
		m.RecordEnqueued()
		m.SetQueueDepth(1)
	})
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.RecordFailure("OCR_UNAVAILABLE")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `invoice_ocr_failures_total{code="OCR_UNAVAILABLE"} 1`)
}
