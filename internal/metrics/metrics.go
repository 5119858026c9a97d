package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks authentication and certificate lifecycle outcomes.
type Metrics struct {
	LoginOutcome *prometheus.CounterVec

	CertificatesIssued prometheus.Counter

	// Verification outcomes by result ("valid", "not_valid")
	Verifications *prometheus.CounterVec

	CertificatesRevoked prometheus.Counter
}

// New registers all counters on the default registerer. Call once per
// process.
func New() *Metrics {
	return &Metrics{
		LoginOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "examcert_login_total",
			Help: "Login attempts by outcome",
		}, []string{"result"}),

		CertificatesIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "examcert_certificates_issued_total",
			Help: "Certificates issued",
		}),

		Verifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "examcert_certificate_verifications_total",
			Help: "Public certificate verifications by outcome",
		}, []string{"result"}),

		CertificatesRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "examcert_certificates_revoked_total",
			Help: "Certificates revoked",
		}),
	}
}

func (m *Metrics) IncrementLogin(result string) {
	if m != nil {
		m.LoginOutcome.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) IncrementIssued() {
	if m != nil {
		m.CertificatesIssued.Inc()
	}
}

func (m *Metrics) IncrementVerification(result string) {
	if m != nil {
		m.Verifications.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) IncrementRevoked() {
	if m != nil {
		m.CertificatesRevoked.Inc()
	}
}
