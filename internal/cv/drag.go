package cv

import "sync"

// DragPhase 是拖拽状态机的阶段。
type DragPhase string

const (
	DragIdle     DragPhase = "idle"
	DragDragging DragPhase = "dragging"
)

// DragState 是当前拖拽的快照。Hover 仅用于视觉反馈。
type DragState struct {
	Phase   DragPhase `json:"phase"`
	BlockID string    `json:"blockId,omitempty"`
	Origin  Zone      `json:"origin,omitempty"`
	Hover   Zone      `json:"hover,omitempty"`
}

// DragCoordinator 把拖拽事件翻译为 Store 变更，同一时刻只允许一个拖拽。
type DragCoordinator struct {
	mu    sync.Mutex
	store *Store
	state DragState
}

// NewDragCoordinator 创建绑定到 store 的协调器。
func NewDragCoordinator(store *Store) *DragCoordinator {
	return &DragCoordinator{store: store, state: DragState{Phase: DragIdle}}
}

// State 返回当前拖拽状态。
func (d *DragCoordinator) State() DragState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Active 返回正在拖拽的块，用于渲染浮动预览。
func (d *DragCoordinator) Active() (Block, bool) {
	d.mu.Lock()
	id := d.state.BlockID
	dragging := d.state.Phase == DragDragging
	d.mu.Unlock()
	if !dragging {
		return Block{}, false
	}
	return d.store.Block(id)
}

// PickUp 开始拖拽。已在拖拽中或块不存在时忽略。
func (d *DragCoordinator) PickUp(blockID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state.Phase == DragDragging {
		return false
	}
	zone, _, ok := d.store.Layout().Locate(blockID)
	if !ok {
		return false
	}
	d.state = DragState{Phase: DragDragging, BlockID: blockID, Origin: zone}
	return true
}

// Hover 记录指针所在区域，不修改 Store。
func (d *DragCoordinator) Hover(zone Zone) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state.Phase != DragDragging {
		return false
	}
	if zone == "" {
		d.state.Hover = ""
		return true
	}
	if _, ok := ParseZone(string(zone)); !ok {
		return false
	}
	d.state.Hover = zone
	return true
}

// Cancel 结束拖拽，不做任何变更。
func (d *DragCoordinator) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = DragState{Phase: DragIdle}
}

// Drop 在 overID 上释放。overID 可以是区域名（落在空白处）或指针下方的块 ID。
// 同区时重排，跨区时移动到 overID 所在位置（落在区域空白处则追加）；
// 目标无效时不做变更。无论结果如何都回到 Idle。
func (d *DragCoordinator) Drop(overID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state.Phase != DragDragging {
		return false
	}
	activeID := d.state.BlockID
	d.state = DragState{Phase: DragIdle}

	if overID == "" || overID == activeID {
		return false
	}

	layout := d.store.Layout()
	origin, _, ok := layout.Locate(activeID)
	if !ok {
		return false
	}

	dest, destIndex, overBlock := resolveTarget(layout, overID)
	if dest == "" {
		return false
	}

	if dest == origin {
		if !overBlock {
			return false
		}
		return d.store.ReorderBlock(origin, activeID, overID)
	}
	return d.store.MoveBlock(activeID, origin, dest, destIndex)
}

func resolveTarget(layout Layout, overID string) (zone Zone, index int, overBlock bool) {
	if z, ok := ParseZone(overID); ok {
		return z, -1, false
	}
	z, i, ok := layout.Locate(overID)
	if !ok {
		return "", -1, false
	}
	return z, i, true
}
