package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-parcels/internal/selection"
)

func TestObserveEvent(t *testing.T) {
	m := New()
	m.ObserveEvent("click", nil)
	m.ObserveEvent("click", selection.ErrOverlayMismatch)
	m.ObserveEvent("confirm", selection.ErrEmptyGroup)
	m.ObserveEvent("click", errors.New("boom"))

	assert.Equal(t, 3.0, testutil.ToFloat64(m.Events.WithLabelValues("click")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rejections.WithLabelValues("overlay_mismatch")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rejections.WithLabelValues("empty_group")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.Rejections))
}

func TestHandler(t *testing.T) {
	m := New()
	m.DroppedSyncs.Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "parcels_host_sync_dropped_total 1"))
}
