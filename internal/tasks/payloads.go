package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// 任务类型常量，确保队列生产者与消费者一致。
const (
	TypeCVExportPDF = "cv:export_pdf"
)

// CVExportPDFPayload 描述导出一份 CV 所需的最小信息。
type CVExportPDFPayload struct {
	CVID          uint   `json:"cv_id"`
	UserID        uint   `json:"user_id"`
	CorrelationID string `json:"correlation_id"`
}

// NewCVExportPDFTask 构造 CV 导出 PDF 任务。
func NewCVExportPDFTask(cvID, userID uint, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(CVExportPDFPayload{
		CVID:          cvID,
		UserID:        userID,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeCVExportPDF, payload), nil
}

// ParseCVExportPDFPayload 解析任务负载。
func ParseCVExportPDFPayload(t *asynq.Task) (CVExportPDFPayload, error) {
	var p CVExportPDFPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("unmarshal payload: %w", err)
	}
	if p.CVID == 0 {
		return p, fmt.Errorf("payload missing cv id")
	}
	return p, nil
}
