package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvPortal/internal/cv"
)

func sampleLayout() cv.Layout {
	return cv.Layout{
		Left: []cv.Block{
			{ID: "bc", Type: cv.TypeBusinessCard, Title: "Business card", Data: map[string]any{"fullName": "Jane Doe"}},
			{ID: "sk", Type: cv.TypeSkill, Title: "Skills", Data: map[string]any{"skills": []any{
				map[string]any{"id": "s1", "name": "Go", "description": "daily"},
			}}},
		},
		Right: []cv.Block{
			{ID: "x", Type: cv.BlockType("hobby"), Title: "Hobbies", Data: map[string]any{}},
		},
		Unused: []cv.Block{
			{ID: "aw", Type: cv.TypeAward, Title: "Hidden awards", Data: map[string]any{}},
		},
	}
}

func TestPreview_Editor(t *testing.T) {
	out, err := NewRegistry(nil).Preview(sampleLayout(), PreviewOptions{Mode: ModeEditor})
	require.NoError(t, err)
	html := string(out)

	assert.Contains(t, html, `id="a4-container"`)
	assert.Contains(t, html, "aspect-ratio: 210 / 297")
	assert.Contains(t, html, `value="Jane Doe"`)
	assert.Contains(t, html, `data-action="add-entry"`)
	assert.Contains(t, html, "<h3 class=\"cv-preview-block-title\">Skills</h3>")
	assert.NotContains(t, html, ">Business card</h3>")
	assert.NotContains(t, html, "Hidden awards")
	assert.Contains(t, html, "Unsupported block: hobby")
	assert.Less(t, strings.Index(html, "cv-preview-column-left"), strings.Index(html, "Jane Doe"))
}

func TestPreview_ReadOnlyOmitsControls(t *testing.T) {
	reg := NewRegistry(nil)
	for _, opts := range []PreviewOptions{
		{Mode: ModeEditor, ReadOnly: true},
		{Mode: ModeModal},
	} {
		out, err := reg.Preview(sampleLayout(), opts)
		require.NoError(t, err)
		html := string(out)
		assert.NotContains(t, html, "<input")
		assert.NotContains(t, html, "<textarea")
		assert.NotContains(t, html, "data-action")
		assert.Contains(t, html, "Jane Doe")
		assert.Contains(t, html, "daily")
	}
}

func TestPrintDocument(t *testing.T) {
	out, err := NewRegistry(nil).PrintDocument("Jane <CV>", sampleLayout())
	require.NoError(t, err)
	html := string(out)
	assert.True(t, strings.HasPrefix(html, "<!DOCTYPE html>"))
	assert.Contains(t, html, "<title>Jane &lt;CV&gt;</title>")
	assert.Contains(t, html, "cv-preview-wrapper--modal")
	assert.Contains(t, html, "@page")
	assert.NotContains(t, html, "<input")
}

func TestRenderBlock_Avatar(t *testing.T) {
	reg := NewRegistry(nil)
	b := cv.Block{ID: "av", Type: cv.TypeAvatar, Title: "Avatar", Data: map[string]any{"image": "https://img.example/a.png"}}

	out, err := reg.RenderBlock(b, false)
	require.NoError(t, err)
	assert.Contains(t, string(out), `src="https://img.example/a.png"`)
	assert.Contains(t, string(out), `type="file"`)

	out, err = reg.RenderBlock(b, true)
	require.NoError(t, err)
	assert.NotContains(t, string(out), `type="file"`)
}

func TestPanel(t *testing.T) {
	layout := sampleLayout()
	out, err := Panel(layout, PanelState{
		Selected: "sk",
		Drag:     cv.DragState{Phase: cv.DragDragging, BlockID: "bc", Origin: cv.ZoneLeft, Hover: cv.ZoneUnused},
	})
	require.NoError(t, err)
	html := string(out)

	for _, z := range []string{"left", "right", "unused"} {
		assert.Contains(t, html, `data-drop-target="`+z+`"`)
	}
	assert.Contains(t, html, "Hidden awards")
	assert.Contains(t, html, `sortable-block sortable-block--selected" data-block-id="sk"`)
	assert.Contains(t, html, `sortable-block sortable-block--dragging" data-block-id="bc"`)
	assert.Contains(t, html, `layout-column layout-column--over" data-zone="unused"`)
}

func TestDragOverlay(t *testing.T) {
	out, err := DragOverlay(cv.Block{ID: "bc", Title: "Business card"})
	require.NoError(t, err)
	assert.Contains(t, string(out), "drag-overlay")
	assert.Contains(t, string(out), "Business card")
}
