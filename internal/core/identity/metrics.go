package identity

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/dep2p/go-dep2p-identity/pkg/lib/crypto"
)

// ============================================================================
//                              指标
// ============================================================================

const metricsNamespace = "dep2p"

// 密钥加载来源
const (
	sourceFile     = "file"
	sourceKeystore = "keystore"
	sourceMemory   = "memory"
)

// Metrics 身份模块的 Prometheus 指标
//
// nil 值可用，所有记录方法在 nil 上为空操作。
type Metrics struct {
	signs     *prometheus.CounterVec
	verifies  *prometheus.CounterVec
	keyLoads  *prometheus.CounterVec
	keyCreate *prometheus.CounterVec
}

// NewMetrics 创建并注册指标
//
// reg 为 nil 时只创建不注册。
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		signs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "identity",
			Name:      "sign_total",
			Help:      "Signatures produced by the local identity.",
		}, []string{"key_type", "result"}),
		verifies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "identity",
			Name:      "verify_total",
			Help:      "Signature verifications performed.",
		}, []string{"key_type", "result"}),
		keyLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "identity",
			Name:      "key_load_total",
			Help:      "Identity key loads by source.",
		}, []string{"source", "result"}),
		keyCreate: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "identity",
			Name:      "key_generate_total",
			Help:      "Identity keys generated.",
		}, []string{"key_type"}),
	}

	if reg == nil {
		return m, nil
	}

	var errs error
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			errs = multierr.Append(errs, err)
		}
	}
	return m, errs
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.signs, m.verifies, m.keyLoads, m.keyCreate}
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

func (m *Metrics) observeSign(kt crypto.KeyType, err error) {
	if m == nil {
		return
	}
	m.signs.WithLabelValues(kt.String(), result(err == nil)).Inc()
}

func (m *Metrics) observeVerify(kt crypto.KeyType, ok bool) {
	if m == nil {
		return
	}
	m.verifies.WithLabelValues(kt.String(), result(ok)).Inc()
}

func (m *Metrics) observeLoad(source string, err error) {
	if m == nil {
		return
	}
	m.keyLoads.WithLabelValues(source, result(err == nil)).Inc()
}

func (m *Metrics) observeGenerate(kt crypto.KeyType) {
	if m == nil {
		return
	}
	m.keyCreate.WithLabelValues(kt.String()).Inc()
}
