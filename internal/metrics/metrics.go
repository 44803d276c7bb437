package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the Prometheus metrics for the bot.
type Collector struct {
	PaymentsCreated   *prometheus.CounterVec
	PaymentsSucceeded *prometheus.CounterVec
	PaymentsTimedOut  prometheus.Counter
	PollAttempts      prometheus.Counter

	InboundsCreated      *prometheus.CounterVec
	ProvisioningFailures *prometheus.CounterVec
	TrialsGranted        prometheus.Counter
	TrialsRefused        prometheus.Counter
	ReferralBonusesGiven prometheus.Counter

	MessagesSent   *prometheus.CounterVec
	SweepReminders *prometheus.CounterVec
}

// NewCollector registers all metrics with the default registry.
func NewCollector() *Collector {
	return NewCollectorWithRegistry(nil)
}

// NewCollectorWithRegistry registers against a custom registry; nil means the
// global one. Tests pass their own registry to avoid duplicate registration.
func NewCollectorWithRegistry(registry *prometheus.Registry) *Collector {
	var factory promauto.Factory
	if registry == nil {
		factory = promauto.With(prometheus.DefaultRegisterer)
	} else {
		factory = promauto.With(registry)
	}

	return &Collector{
		PaymentsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vpnbot_payments_created_total",
			Help: "Payments created at the gateway, by tariff",
		}, []string{"tariff"}),
		PaymentsSucceeded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vpnbot_payments_succeeded_total",
			Help: "Payments confirmed by the poll loop, by tariff",
		}, []string{"tariff"}),
		PaymentsTimedOut: factory.NewCounter(prometheus.CounterOpts{
			Name: "vpnbot_payments_timed_out_total",
			Help: "Payment polls that exhausted their attempt budget",
		}),
		PollAttempts: factory.NewCounter(prometheus.CounterOpts{
			Name: "vpnbot_payment_poll_attempts_total",
			Help: "Individual payment status checks",
		}),
		InboundsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vpnbot_inbounds_created_total",
			Help: "VPN credentials provisioned, by kind (paid/trial)",
		}, []string{"kind"}),
		ProvisioningFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vpnbot_provisioning_failures_total",
			Help: "Failed panel operations, by operation",
		}, []string{"operation"}),
		TrialsGranted: factory.NewCounter(prometheus.CounterOpts{
			Name: "vpnbot_trials_granted_total",
			Help: "Trials granted",
		}),
		TrialsRefused: factory.NewCounter(prometheus.CounterOpts{
			Name: "vpnbot_trials_refused_total",
			Help: "Trials refused because of the cooldown window",
		}),
		ReferralBonusesGiven: factory.NewCounter(prometheus.CounterOpts{
			Name: "vpnbot_referral_bonuses_total",
			Help: "Referral bonuses credited to referrers",
		}),
		MessagesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vpnbot_telegram_messages_sent_total",
			Help: "Telegram messages sent, by result",
		}, []string{"result"}),
		SweepReminders: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vpnbot_sweep_reminders_total",
			Help: "Expiry sweep reminders sent, by kind (sub/trial)",
		}, []string{"kind"}),
	}
}
