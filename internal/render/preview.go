package render

import (
	"bytes"
	"fmt"
	"html/template"

	"cvPortal/internal/cv"
)

// PreviewMode 决定预览的呈现方式。
type PreviewMode string

const (
	ModeEditor PreviewMode = "editor"
	ModeModal  PreviewMode = "modal"
)

// ParsePreviewMode 解析预览模式，未知值按 editor 处理。
func ParsePreviewMode(s string) PreviewMode {
	if PreviewMode(s) == ModeModal {
		return ModeModal
	}
	return ModeEditor
}

// PreviewOptions 控制预览渲染。modal 模式总是只读。
type PreviewOptions struct {
	Mode     PreviewMode
	ReadOnly bool
}

type previewData struct {
	Modal bool
	Left  []BlockView
	Right []BlockView
}

type documentData struct {
	Title   string
	Styles  template.CSS
	Preview previewData
}

func (r *Registry) previewData(layout cv.Layout, opts PreviewOptions) previewData {
	readOnly := opts.ReadOnly || opts.Mode == ModeModal
	views := func(blocks []cv.Block) []BlockView {
		out := make([]BlockView, 0, len(blocks))
		for _, b := range blocks {
			out = append(out, r.View(b, readOnly))
		}
		return out
	}
	return previewData{
		Modal: opts.Mode == ModeModal,
		Left:  views(layout.Left),
		Right: views(layout.Right),
	}
}

// Preview 在 A4 容器中渲染两栏；unused 中的块不出现。
func (r *Registry) Preview(layout cv.Layout, opts PreviewOptions) ([]byte, error) {
	return execute("preview", r.previewData(layout, opts))
}

// RenderBlock 渲染单个块。
func (r *Registry) RenderBlock(b cv.Block, readOnly bool) ([]byte, error) {
	return execute("block", r.View(b, readOnly))
}

// PrintDocument 生成用于导出 PDF 的完整 HTML 页面。
func (r *Registry) PrintDocument(title string, layout cv.Layout) ([]byte, error) {
	return execute("document", documentData{
		Title:   title,
		Styles:  template.CSS(stylesheet),
		Preview: r.previewData(layout, PreviewOptions{Mode: ModeModal, ReadOnly: true}),
	})
}

// DragOverlay 渲染拖拽中跟随指针的浮动预览。
func DragOverlay(b cv.Block) ([]byte, error) {
	return execute("overlay", b)
}

func execute(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}
