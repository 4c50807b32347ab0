package render

import (
	"cvPortal/internal/cv"
)

var zoneTitles = map[cv.Zone]string{
	cv.ZoneLeft:   "Left column",
	cv.ZoneRight:  "Right column",
	cv.ZoneUnused: "Unused sections",
}

// PanelState 是布局面板的本地界面状态，不参与持久化。
type PanelState struct {
	Selected string
	Drag     cv.DragState
}

type handleView struct {
	ID       string
	Title    string
	Zone     cv.Zone
	Selected bool
	Dragging bool
}

type zoneView struct {
	ID     cv.Zone
	Title  string
	Hover  bool
	Blocks []handleView
}

type panelData struct {
	Zones []zoneView
}

// Panel 渲染三个可放置区域及其中的块句柄。
func Panel(layout cv.Layout, state PanelState) ([]byte, error) {
	dragging := state.Drag.Phase == cv.DragDragging
	data := panelData{Zones: make([]zoneView, 0, len(cv.Zones))}
	for _, z := range cv.Zones {
		zv := zoneView{
			ID:    z,
			Title: zoneTitles[z],
			Hover: dragging && state.Drag.Hover == z,
		}
		for _, b := range layout.Zone(z) {
			zv.Blocks = append(zv.Blocks, handleView{
				ID:       b.ID,
				Title:    b.Title,
				Zone:     z,
				Selected: state.Selected == b.ID,
				Dragging: dragging && state.Drag.BlockID == b.ID,
			})
		}
		data.Zones = append(data.Zones, zv)
	}
	return execute("panel", data)
}
