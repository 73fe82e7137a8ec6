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

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Event(1, "call")
		m.Command(1, "attach")
		m.Nesting(1, 3)
	})
	assert.Nil(t, m.Registry())
}

func TestCounters(t *testing.T) {
	m := New()
	m.Event(42, "call")
	m.Event(42, "call")
	m.Event(42, "return")
	m.Command(42, "attach")
	m.Nesting(42, 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.events.WithLabelValues("42", "call")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues("42", "return")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commands.WithLabelValues("42", "attach")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.nesting.WithLabelValues("42")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.Command(7, "firehose")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), `calltap_commands_total{pid="7",verb="firehose"} 1`))
}
