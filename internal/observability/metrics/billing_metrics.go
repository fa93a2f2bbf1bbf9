package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	RunModePreview     = "preview"
	RunModeMaterialize = "materialize"

	OutcomeSuccess = "success"
	OutcomePartial = "partial"
	OutcomeFailed  = "failed"
)

// Config configures metric labels.
type Config struct {
	ServiceName string
	Environment string
}

// BillingMetrics captures storage billing engine signals.
type BillingMetrics struct {
	runs            *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	invoicesCreated prometheus.Counter
	invoicedAmount  *prometheus.CounterVec
	customerErrors  prometheus.Counter
	zeroRateGaps    prometheus.Counter
	jobRuns         *prometheus.CounterVec
	jobErrors       *prometheus.CounterVec
}

var (
	billingMetricsOnce sync.Once
	billingMetrics     *BillingMetrics
)

// Billing returns the process-wide billing metrics registered on the default registerer.
func Billing() *BillingMetrics {
	return BillingWithConfig(Config{})
}

// BillingWithConfig returns the singleton billing metrics using config labels.
func BillingWithConfig(cfg Config) *BillingMetrics {
	billingMetricsOnce.Do(func() {
		billingMetrics = NewBillingMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return billingMetrics
}

// NewBillingMetrics builds and registers billing instruments on the given registerer.
func NewBillingMetrics(registerer prometheus.Registerer, cfg Config) *BillingMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "vaultline"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{"service": serviceName, "env": environment}

	m := &BillingMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "vaultline_billing_runs_total",
			Help:        "Storage billing runs by mode and outcome.",
			ConstLabels: constLabels,
		}, []string{"mode", "outcome"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "vaultline_billing_run_duration_seconds",
			Help:        "Storage billing run latency by mode.",
			Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			ConstLabels: constLabels,
		}, []string{"mode"}),
		invoicesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "vaultline_billing_invoices_created_total",
			Help:        "Invoices materialized by the storage billing engine.",
			ConstLabels: constLabels,
		}),
		invoicedAmount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "vaultline_billing_invoiced_amount_total",
			Help:        "Invoiced amount by line kind, in major currency units.",
			ConstLabels: constLabels,
		}, []string{"kind"}),
		customerErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "vaultline_billing_customer_failures_total",
			Help:        "Customers whose invoice could not be materialized.",
			ConstLabels: constLabels,
		}),
		zeroRateGaps: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "vaultline_billing_zero_rate_containers_total",
			Help:        "Containers that resolved to a zero monthly rate.",
			ConstLabels: constLabels,
		}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "vaultline_scheduler_job_runs_total",
			Help:        "Scheduler job runs by name.",
			ConstLabels: constLabels,
		}, []string{"job"}),
		jobErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "vaultline_scheduler_job_errors_total",
			Help:        "Scheduler job errors by name.",
			ConstLabels: constLabels,
		}, []string{"job"}),
	}

	registerer.MustRegister(
		m.runs,
		m.runDuration,
		m.invoicesCreated,
		m.invoicedAmount,
		m.customerErrors,
		m.zeroRateGaps,
		m.jobRuns,
		m.jobErrors,
	)
	return m
}

func (m *BillingMetrics) ObserveRun(mode, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(mode, outcome).Inc()
	m.runDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
}

func (m *BillingMetrics) IncInvoiceCreated() {
	if m == nil {
		return
	}
	m.invoicesCreated.Inc()
}

func (m *BillingMetrics) AddInvoicedAmount(kind string, amount float64) {
	if m == nil || amount <= 0 {
		return
	}
	m.invoicedAmount.WithLabelValues(kind).Add(amount)
}

func (m *BillingMetrics) IncCustomerFailure() {
	if m == nil {
		return
	}
	m.customerErrors.Inc()
}

func (m *BillingMetrics) AddZeroRateGaps(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.zeroRateGaps.Add(float64(count))
}

func (m *BillingMetrics) IncJobRun(job string) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

func (m *BillingMetrics) IncJobError(job string) {
	if m == nil {
		return
	}
	m.jobErrors.WithLabelValues(job).Inc()
}
