package obs

import (
	"runtime"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	buildInfoOnce sync.Once

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Build information for recruitgate binaries.",
		},
		[]string{"binary", "version", "commit", "go_version"},
	)
)

// InitBuildInfo registers build_info once and sets it to 1 for this binary.
func InitBuildInfo(binary, version, commit string) {
	buildInfoOnce.Do(func() {
		prometheus.MustRegister(buildInfo)
	})
	buildInfo.WithLabelValues(binary, version, commit, runtime.Version()).Set(1)
}
