package stats

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// the expvar map can only be registered once per process, so every
// subtest shares one updater
func TestStatsUpdater(t *testing.T) {
	mux := http.NewServeMux()
	su := NewStatsUpdater(mux)

	t.Run("initializes and registers handler", func(t *testing.T) {
		assert.NotNil(t, su, "expected StatsUpdater to be non-nil")
		assert.NotNil(t, su.updateChan, "expected updateChan to be initialized")
		handler, pattern := mux.Handler(&http.Request{URL: &url.URL{Path: "/debug/vars"}, Method: http.MethodGet})
		assert.NotNil(t, handler, "expected handler for /debug/vars to be set")
		assert.Equal(t, "GET /debug/vars", pattern, "expected handler to be registered for GET method on /debug/vars")
	})

	t.Run("registers metrics", func(t *testing.T) {
		su.RegisterMetric("TestCounter")
		assert.NotNil(t, su.vars.Get("TestCounter"), "expected metric to be registered")
	})

	t.Run("re-registration is safe", func(t *testing.T) {
		// every chat server construction registers the same metric names,
		// so a shared updater sees each name more than once
		assert.NotPanics(t, func() {
			su.RegisterMetric("TestCounter")
			su.RegisterMetric("TestCounter")
		}, "expected repeated registration to not panic")
		assert.NotNil(t, su.vars.Get("TestCounter"), "expected metric to survive re-registration")
	})

	t.Run("applies increments and decrements", func(t *testing.T) {
		su.RegisterMetric("TestGauge")
		su.Run()
		defer su.Stop()

		su.Incr("TestGauge")
		su.Incr("TestGauge")
		su.Decr("TestGauge")

		assert.Eventually(t, func() bool {
			return su.vars.Get("TestGauge").String() == "1"
		}, time.Second, 10*time.Millisecond, "expected updates to be applied")
	})

	t.Run("reports uptime", func(t *testing.T) {
		assert.GreaterOrEqual(t, su.Uptime(), time.Duration(0), "expected non-negative uptime")
	})
}
