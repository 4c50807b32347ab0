package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	editorSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "cvportal",
			Subsystem: "editor",
			Name:      "sessions",
			Help:      "当前内存中的编辑会话数量。",
		},
	)

	cvSavesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cvportal",
			Subsystem: "editor",
			Name:      "saves_total",
			Help:      "CV 保存次数，按结果区分。",
		},
		[]string{"result"},
	)

	exportsEnqueuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cvportal",
			Subsystem: "export",
			Name:      "enqueued_total",
			Help:      "已入队的 PDF 导出任务数。",
		},
	)
)

// 保存结果标签。
const (
	SaveCreated  = "created"
	SaveUpdated  = "updated"
	SaveInvalid  = "invalid"
	SaveRejected = "rejected"
	SaveFailed   = "failed"
)

// SetEditorSessions 更新编辑会话数量。
func SetEditorSessions(n int) {
	editorSessions.Set(float64(n))
}

// ObserveSave 记录一次保存结果。
func ObserveSave(result string) {
	cvSavesTotal.WithLabelValues(result).Inc()
}

// ObserveExportEnqueued 记录一次导出入队。
func ObserveExportEnqueued() {
	exportsEnqueuedTotal.Inc()
}
