package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvPortal/internal/cv"
	"cvPortal/internal/cvstore"
	"cvPortal/internal/errcode"
	"cvPortal/internal/tasks"
)

type fakeCVs struct {
	rec     cvstore.Record
	err     error
	pdfKey  string
	setKeys []string
}

func (f *fakeCVs) GetByID(context.Context, uint) (cvstore.Record, error) {
	return f.rec, f.err
}

func (f *fakeCVs) SetPDF(_ context.Context, _ uint, key string) (string, error) {
	prev := f.pdfKey
	f.pdfKey = key
	f.setKeys = append(f.setKeys, key)
	return prev, nil
}

type fakeStorage struct {
	uploaded map[string][]byte
	deleted  []string
}

func (f *fakeStorage) UploadFile(_ context.Context, objectName string, reader io.Reader, _ int64, _ string) (*minio.UploadInfo, error) {
	if f.uploaded == nil {
		f.uploaded = make(map[string][]byte)
	}
	data, _ := io.ReadAll(reader)
	f.uploaded[objectName] = data
	return &minio.UploadInfo{Key: objectName}, nil
}

func (f *fakeStorage) DeleteObject(_ context.Context, objectKey string) error {
	f.deleted = append(f.deleted, objectKey)
	return nil
}

type fakePrinter struct {
	html string
	err  error
}

func (f *fakePrinter) Print(_ context.Context, html string) ([]byte, error) {
	f.html = html
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF-1.7"), nil
}

type fakeNotifier struct {
	userID   uint
	messages []PDFExportNotifyMessage
}

func (f *fakeNotifier) Notify(_ context.Context, userID uint, msg PDFExportNotifyMessage) error {
	f.userID = userID
	f.messages = append(f.messages, msg)
	return nil
}

func newTestHandler(cvs *fakeCVs, printer *fakePrinter) (*PDFTaskHandler, *fakeStorage, *fakeNotifier) {
	store := &fakeStorage{}
	notifier := &fakeNotifier{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewPDFTaskHandler(cvs, store, printer, notifier, logger), store, notifier
}

func exportTask(t *testing.T, cvID, userID uint) *asynq.Task {
	t.Helper()
	task, err := tasks.NewCVExportPDFTask(cvID, userID, "corr")
	require.NoError(t, err)
	return task
}

func savedRecord() cvstore.Record {
	return cvstore.Record{
		Payload: cv.ToPayload("Printed CV", "4", cv.DefaultLayout()),
		UserID:  2,
		PdfKey:  "generated-cvs/2/old.pdf",
	}
}

func TestProcessTask_Success(t *testing.T) {
	cvs := &fakeCVs{rec: savedRecord(), pdfKey: "generated-cvs/2/old.pdf"}
	printer := &fakePrinter{}
	h, store, notifier := newTestHandler(cvs, printer)

	require.NoError(t, h.ProcessTask(context.Background(), exportTask(t, 4, 2)))

	assert.Contains(t, printer.html, "<title>Printed CV</title>")
	require.Len(t, cvs.setKeys, 1)
	key := cvs.setKeys[0]
	assert.True(t, strings.HasPrefix(key, "generated-cvs/2/"))
	assert.Equal(t, []byte("%PDF-1.7"), store.uploaded[key])
	assert.Equal(t, []string{"generated-cvs/2/old.pdf"}, store.deleted)

	require.Len(t, notifier.messages, 1)
	assert.Equal(t, uint(2), notifier.userID)
	assert.Equal(t, "completed", notifier.messages[0].Status)
	assert.Equal(t, errcode.OK, notifier.messages[0].ErrorCode)
	assert.Equal(t, "corr", notifier.messages[0].CorrelationID)
}

func TestProcessTask_NotFoundIsNotRetried(t *testing.T) {
	testCases := []struct {
		name string
		cvs  *fakeCVs
	}{
		{name: "missing", cvs: &fakeCVs{err: cvstore.ErrNotFound}},
		{name: "other owner", cvs: &fakeCVs{rec: cvstore.Record{UserID: 99}}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h, store, notifier := newTestHandler(tc.cvs, &fakePrinter{})
			require.NoError(t, h.ProcessTask(context.Background(), exportTask(t, 4, 2)))
			assert.Empty(t, store.uploaded)
			require.Len(t, notifier.messages, 1)
			assert.Equal(t, errcode.CVNotFound, notifier.messages[0].ErrorCode)
		})
	}
}

func TestProcessTask_NothingToPrint(t *testing.T) {
	rec := savedRecord()
	layout := cv.DefaultLayout()
	layout.Unused = append(append(layout.Unused, layout.Left...), layout.Right...)
	layout.Left, layout.Right = nil, nil
	rec.Payload = cv.ToPayload("empty", "4", layout)

	h, _, notifier := newTestHandler(&fakeCVs{rec: rec}, &fakePrinter{})
	require.NoError(t, h.ProcessTask(context.Background(), exportTask(t, 4, 2)))
	require.Len(t, notifier.messages, 1)
	assert.Equal(t, errcode.NothingToPrint, notifier.messages[0].ErrorCode)
}

func TestProcessTask_PrintFailureIsRetried(t *testing.T) {
	cvs := &fakeCVs{rec: savedRecord()}
	h, store, notifier := newTestHandler(cvs, &fakePrinter{err: errors.New("chromium crashed")})

	err := h.ProcessTask(context.Background(), exportTask(t, 4, 2))
	require.Error(t, err)
	assert.Empty(t, store.uploaded)
	assert.Empty(t, cvs.setKeys)
	assert.Empty(t, notifier.messages)
}

func TestProcessTask_BadPayloadSkipsRetry(t *testing.T) {
	h, _, _ := newTestHandler(&fakeCVs{}, &fakePrinter{})
	err := h.ProcessTask(context.Background(), asynq.NewTask(tasks.TypeCVExportPDF, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestNotifyChannel(t *testing.T) {
	assert.Equal(t, "user_notify:12", NotifyChannel(12))
}
