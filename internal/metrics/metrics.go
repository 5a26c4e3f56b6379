package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	metrics "github.com/soulteary/metrics-kit"
)

var (
	// Registry is the Prometheus registry for herald-otp metrics
	Registry *metrics.Registry

	// RegisterTotal counts registrations by result and response kind (json or qr)
	RegisterTotal *prometheus.CounterVec

	// VerifyTotal counts verify attempts by result
	VerifyTotal *prometheus.CounterVec

	// URICacheTotal counts provisioning URI cache lookups by outcome (hit or miss)
	URICacheTotal *prometheus.CounterVec
)

func init() {
	Init()
}

// Init initializes herald-otp metrics
func Init() {
	Registry = metrics.NewRegistry("herald_otp")
	RegisterTotal = Registry.Counter("register_total").
		Help("Total account registrations by result").
		Labels("result", "kind").
		BuildVec()
	VerifyTotal = Registry.Counter("verify_total").
		Help("Total OTP verify attempts by result").
		Labels("result").
		BuildVec()
	URICacheTotal = Registry.Counter("uri_cache_total").
		Help("Provisioning URI cache lookups").
		Labels("outcome").
		BuildVec()
}

// RecordRegister records a registration (result: "success", "conflict", "invalid_input", "error")
func RecordRegister(result, kind string) {
	if RegisterTotal != nil {
		RegisterTotal.WithLabelValues(result, kind).Inc()
	}
}

// RecordVerify records a verify attempt (result: "valid", "invalid", "not_found", "invalid_input", "error")
func RecordVerify(result string) {
	if VerifyTotal != nil {
		VerifyTotal.WithLabelValues(result).Inc()
	}
}

// RecordURICache records a provisioning URI cache lookup
func RecordURICache(hit bool) {
	if URICacheTotal == nil {
		return
	}
	if hit {
		URICacheTotal.WithLabelValues("hit").Inc()
		return
	}
	URICacheTotal.WithLabelValues("miss").Inc()
}
