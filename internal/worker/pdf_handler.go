package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/minio/minio-go/v7"

	"cvPortal/internal/cv"
	"cvPortal/internal/cvstore"
	"cvPortal/internal/errcode"
	"cvPortal/internal/render"
	"cvPortal/internal/storage"
	"cvPortal/internal/tasks"
)

// CVSource 是导出任务读写 CV 所需的能力。
type CVSource interface {
	GetByID(ctx context.Context, id uint) (cvstore.Record, error)
	SetPDF(ctx context.Context, id uint, key string) (string, error)
}

// ObjectStore 保存生成的 PDF。
type ObjectStore interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error)
	DeleteObject(ctx context.Context, objectKey string) error
}

// Printer 把 HTML 文档打印为 PDF。
type Printer interface {
	Print(ctx context.Context, html string) ([]byte, error)
}

// PDFTaskHandler 负责消费 CV 导出任务。
type PDFTaskHandler struct {
	cvs      CVSource
	storage  ObjectStore
	printer  Printer
	notifier Notifier
	logger   *slog.Logger
}

// NewPDFTaskHandler 创建任务处理器。
func NewPDFTaskHandler(cvs CVSource, storage ObjectStore, printer Printer, notifier Notifier, logger *slog.Logger) *PDFTaskHandler {
	return &PDFTaskHandler{
		cvs:      cvs,
		storage:  storage,
		printer:  printer,
		notifier: notifier,
		logger:   logger,
	}
}

// ProcessTask 实现 asynq.Handler。
func (h *PDFTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) (retErr error) {
	log := h.logger

	payload, err := tasks.ParseCVExportPDFPayload(t)
	if err != nil {
		log.Error("invalid task payload", slog.Any("error", err))
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	log = log.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.Uint64("cv_id", uint64(payload.CVID)),
		slog.Uint64("user_id", uint64(payload.UserID)),
	)
	log.Info("starting cv pdf export")

	rec, err := h.cvs.GetByID(ctx, payload.CVID)
	if err == nil && rec.UserID != payload.UserID {
		err = cvstore.ErrNotFound
	}
	if err != nil {
		if errors.Is(err, cvstore.ErrNotFound) {
			log.Warn("cv not found, skipping task")
			h.notify(ctx, log, payload, errcode.CVNotFound, "cv not found")
			return nil
		}
		log.Error("query cv failed", slog.Any("error", err))
		return err
	}

	defer func() {
		if retErr == nil || !isFinalAsynqAttempt(ctx) {
			return
		}
		h.notify(ctx, log, payload, errcode.SystemError, strings.TrimSpace(retErr.Error()))
	}()

	layout := cv.FromPayload(rec.Payload)
	if len(layout.Printed()) == 0 {
		log.Warn("cv has no printable blocks")
		h.notify(ctx, log, payload, errcode.NothingToPrint, "cv has no blocks in the left or right column")
		return nil
	}

	doc, err := render.NewRegistry(nil).PrintDocument(rec.Payload.Title, layout)
	if err != nil {
		log.Error("render print document failed", slog.Any("error", err))
		return err
	}

	pdfBytes, err := h.printer.Print(ctx, string(doc))
	if err != nil {
		log.Error("print pdf failed", slog.Any("error", err))
		return err
	}

	objectName := storage.GeneratedCVKey(rec.UserID, uuid.NewString())
	if _, err := h.storage.UploadFile(ctx, objectName, bytes.NewReader(pdfBytes), int64(len(pdfBytes)), "application/pdf"); err != nil {
		log.Error("upload pdf to minio failed", slog.Any("error", err))
		return err
	}

	previous, err := h.cvs.SetPDF(ctx, payload.CVID, objectName)
	if err != nil {
		log.Error("store pdf key failed", slog.Any("error", err))
		return err
	}
	if previous != "" && previous != objectName {
		if err := h.storage.DeleteObject(ctx, previous); err != nil {
			log.Warn("delete previous pdf failed", slog.String("object_key", previous), slog.Any("error", err))
		}
	}

	h.notify(ctx, log, payload, errcode.OK, "")
	log.Info("cv pdf export completed", slog.String("object_key", objectName))
	return nil
}

func (h *PDFTaskHandler) notify(ctx context.Context, log *slog.Logger, p tasks.CVExportPDFPayload, code int, message string) {
	status := "completed"
	if code != errcode.OK {
		status = "error"
	}
	msg := PDFExportNotifyMessage{
		Status:        status,
		CVID:          p.CVID,
		CorrelationID: p.CorrelationID,
		ErrorCode:     code,
		ErrorMessage:  message,
	}
	if err := h.notifier.Notify(ctx, p.UserID, msg); err != nil {
		log.Error("publish pdf notification failed", slog.Any("error", err))
	}
}

func isFinalAsynqAttempt(ctx context.Context) bool {
	retryCount, ok1 := asynq.GetRetryCount(ctx)
	maxRetry, ok2 := asynq.GetMaxRetry(ctx)
	if !ok1 || !ok2 {
		return false
	}
	return retryCount >= maxRetry
}
