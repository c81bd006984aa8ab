package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var (
	LoginSuccessTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "authcore_logins_success_total",
		Help: "Total number of successful login attempts.",
	})
	LoginFailureTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "authcore_logins_failure_total",
		Help: "Total number of failed login attempts.",
	})
	TokensIssuedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "authcore_tokens_issued_total",
		Help: "Total number of session tokens issued.",
	})
	TokensRefreshedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "authcore_tokens_refreshed_total",
		Help: "Total number of session tokens transparently refreshed.",
	})
	SignatureFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "authcore_token_signature_failures_total",
		Help: "Total number of credentials rejected for an invalid signature or algorithm.",
	})
	MalformedTokensTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "authcore_tokens_malformed_total",
		Help: "Total number of credentials rejected as structurally malformed.",
	})
	RevocationRejectsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "authcore_accesskey_revocation_rejects_total",
		Help: "Total number of requests rejected with a revoked or expired access key.",
	})
	AuditRecordsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "authcore_audit_records_total",
		Help: "Total number of login audit records appended.",
	})
)

// Register registers all counters with the given registry. Called once at
// application startup; the counters themselves are usable before (and
// without) registration, which keeps tests free of registry setup.
func Register(reg prometheus.Registerer) {
	collectors := []prometheus.Collector{
		LoginSuccessTotal,
		LoginFailureTotal,
		TokensIssuedTotal,
		TokensRefreshedTotal,
		SignatureFailuresTotal,
		MalformedTokensTotal,
		RevocationRejectsTotal,
		AuditRecordsTotal,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			log.Warn().Err(err).Msg("failed to register prometheus collector")
		}
	}
}
