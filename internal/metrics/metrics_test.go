package metrics

import "testing"

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.IncrementLogin("ok")
	m.IncrementIssued()
	m.IncrementVerification("valid")
	m.IncrementRevoked()
}

func TestIncrements(t *testing.T) {
	m := New()
	m.IncrementLogin("invalid_credentials")
	m.IncrementIssued()
	m.IncrementVerification("not_valid")
	m.IncrementRevoked()
}
