package metrics

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bnb-chain/verivid-hub/logging"
)

var (
	AuthAttemptsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_attempts_total",
		Help: "Wallet login attempts partitioned by result.",
	}, []string{"result"})

	AssetsRegisteredCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "assets_registered_total",
		Help: "Assets whose fingerprint has been registered.",
	})

	DuplicateRejectionsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "duplicate_rejections_total",
		Help: "Asset registrations rejected because the fingerprint already exists.",
	})

	PipelineJobsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_jobs_total",
		Help: "Pipeline job executions partitioned by stage and result.",
	}, []string{"type", "result"})

	PipelineJobFailedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_job_failed_total",
		Help: "Pipeline jobs that exhausted their attempts.",
	}, []string{"type"})

	PipelineQueueDepthGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pipeline_queue_depth",
		Help: "Pending pipeline jobs.",
	})

	ProofsConfirmedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "proofs_confirmed_total",
		Help: "Proof registrations confirmed against the chain.",
	})

	ChainRPCErrorsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chain_rpc_errors_total",
		Help: "Failed calls to the chain rpc node.",
	})

	MetricsItems = []prometheus.Collector{
		AuthAttemptsCounter,
		AssetsRegisteredCounter,
		DuplicateRejectionsCounter,
		PipelineJobsCounter,
		PipelineJobFailedCounter,
		PipelineQueueDepthGauge,
		ProofsConfirmedCounter,
		ChainRPCErrorsCounter,
	}
)

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultRetry   = "retry"
)

type Metrics struct {
	httpAddress string
	registry    *prometheus.Registry
	httpServer  *http.Server
}

func NewMetrics(address string) *Metrics {
	return &Metrics{
		httpAddress: address,
		registry:    prometheus.NewRegistry(),
	}
}

func (m *Metrics) Start() {
	m.registry.MustRegister(MetricsItems...)
	go m.serve()
}

// Handler exposes the registry so the metrics can also be mounted on another router.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) serve() {
	router := mux.NewRouter()
	router.Path("/metrics").Handler(m.Handler())
	m.httpServer = &http.Server{
		Addr:    m.httpAddress,
		Handler: router,
	}
	if err := m.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logging.Logger.Errorf("failed to listen and serve metrics, err=%s", err.Error())
		panic(err)
	}
}
