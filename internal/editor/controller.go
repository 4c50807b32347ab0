package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"cvPortal/internal/cv"
	"cvPortal/internal/render"
)

var (
	ErrReadOnly      = errors.New("cv is read-only")
	ErrSaving        = errors.New("save in progress")
	ErrNotLoaded     = errors.New("editor not loaded")
	ErrNoPersistence = errors.New("persistence not configured")
)

// Mode 是进入编辑页时携带的导航模式。
type Mode string

const (
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
	ModeView   Mode = "view"
)

// ParseMode 解析导航模式，未知值按 create 处理。
func ParseMode(s string) Mode {
	switch m := Mode(s); m {
	case ModeEdit, ModeView:
		return m
	}
	return ModeCreate
}

// State 是页面控制器对外呈现的状态。
type State string

const (
	StateUninitialized State = "uninitialized"
	StateLoaded        State = "loaded"
	StateDirty         State = "dirty"
	StateSaving        State = "saving"
	StateSaved         State = "saved"
	StateSaveFailed    State = "save_failed"
)

type phase int

const (
	phaseUninitialized phase = iota
	phaseLoaded
	phaseSaving
	phaseSaved
	phaseSaveFailed
)

// SaveResult 是持久化接口的保存结果。
type SaveResult struct {
	ID      cv.ID
	Created bool
}

// Persistence 是外部 CV 持久化接口。
type Persistence interface {
	Save(ctx context.Context, p cv.Payload) (SaveResult, error)
	Fetch(ctx context.Context, id cv.ID) (cv.Payload, error)
	FetchShared(ctx context.Context, token string) (cv.Payload, error)
}

// Incoming 是挂载时的导航输入。CV 优先，其次分享 token，再次 CVID；都没有时使用默认布局。
type Incoming struct {
	Mode       Mode
	CV         *cv.Payload
	CVID       cv.ID
	ShareToken string
}

// Snapshot 是控制器当前状态的只读视图。
type Snapshot struct {
	State      State         `json:"state"`
	Mode       Mode          `json:"mode"`
	ReadOnly   bool          `json:"readOnly"`
	Dirty      bool          `json:"dirty"`
	ID         cv.ID         `json:"id"`
	Title      string        `json:"title"`
	Visibility cv.Visibility `json:"visibility"`
	Layout     cv.Layout     `json:"layout"`
	Drag       cv.DragState  `json:"drag"`
	Selected   string        `json:"selected,omitempty"`
	LoadError  string        `json:"loadError,omitempty"`
	SaveError  string        `json:"saveError,omitempty"`
}

// Controller 连接导航、持久化与 Store，负责保存前校验与脏检查。
// 所有编辑都经过 Store 的变更操作完成。
type Controller struct {
	mu sync.Mutex

	store     *cv.Store
	drag      *cv.DragCoordinator
	renderers *render.Registry
	persist   Persistence

	phase      phase
	mode       Mode
	readOnly   bool
	id         cv.ID
	title      string
	visibility cv.Visibility
	status     cv.Status
	baseline   string
	selected   string
	mounted    map[string]struct{}
	loadErr    error
	saveErr    error
}

// NewController 创建控制器；host 可以为 nil。
func NewController(persist Persistence, host render.ImageHost) *Controller {
	store := cv.NewStore()
	return &Controller{
		store:     store,
		drag:      cv.NewDragCoordinator(store),
		renderers: render.NewRegistry(host),
		persist:   persist,
		mounted:   make(map[string]struct{}),
	}
}

// Mount 加载 CV。拉取失败时回退到默认布局，返回的错误仅作提示，控制器仍处于可编辑状态。
func (c *Controller) Mount(ctx context.Context, in Incoming) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != phaseUninitialized {
		c.unmountLocked()
	}

	c.mode = in.Mode
	if c.mode == "" {
		c.mode = ModeCreate
	}
	c.readOnly = c.mode == ModeView

	payload, loaded, err := c.resolve(ctx, in)
	switch {
	case err != nil:
		c.loadErr = err
		c.store.ResetLayout()
	case loaded:
		c.id = payload.ID
		c.title = payload.Title
		c.visibility = payload.Visibility
		c.status = payload.Status
		c.store.SetLayout(cv.FromPayload(payload))
	default:
		c.store.ResetLayout()
	}
	if in.ShareToken != "" && in.CV == nil {
		c.readOnly = true
		c.mode = ModeView
	}
	// 已有 ID 但未携带可见性时保持为空，保存时沿用库中的值。
	if c.visibility == "" && c.id.IsZero() {
		c.visibility = cv.VisibilityPrivate
	}

	c.syncMountsLocked()
	c.baseline = cv.Fingerprint(c.payloadLocked())
	c.phase = phaseLoaded
	return c.loadErr
}

func (c *Controller) resolve(ctx context.Context, in Incoming) (cv.Payload, bool, error) {
	switch {
	case in.CV != nil:
		return *in.CV, true, nil
	case in.ShareToken != "":
		if c.persist == nil {
			return cv.Payload{}, false, ErrNoPersistence
		}
		p, err := c.persist.FetchShared(ctx, in.ShareToken)
		if err != nil {
			return cv.Payload{}, false, fmt.Errorf("fetch shared cv: %w", err)
		}
		return p, true, nil
	case !in.CVID.IsZero():
		if c.persist == nil {
			return cv.Payload{}, false, ErrNoPersistence
		}
		p, err := c.persist.Fetch(ctx, in.CVID)
		if err != nil {
			return cv.Payload{}, false, fmt.Errorf("fetch cv %s: %w", in.CVID, err)
		}
		return p, true, nil
	}
	return cv.Payload{}, false, nil
}

// Unmount 拆除编辑会话，Store 恢复默认布局。
func (c *Controller) Unmount() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unmountLocked()
}

func (c *Controller) unmountLocked() {
	c.drag.Cancel()
	c.store.ResetLayout()
	c.phase = phaseUninitialized
	c.mode = ""
	c.readOnly = false
	c.id = ""
	c.title = ""
	c.visibility = ""
	c.status = ""
	c.baseline = ""
	c.selected = ""
	c.mounted = make(map[string]struct{})
	c.loadErr = nil
	c.saveErr = nil
}

// syncMountsLocked 让新进入两栏的块各挂载一次，离开两栏的块视为卸载。
func (c *Controller) syncMountsLocked() {
	printed := c.store.Layout().Printed()
	present := make(map[string]struct{}, len(printed))
	for _, b := range printed {
		present[b.ID] = struct{}{}
		if _, ok := c.mounted[b.ID]; ok {
			continue
		}
		c.renderers.Mount(c.store, b.ID)
		c.mounted[b.ID] = struct{}{}
	}
	for id := range c.mounted {
		if _, ok := present[id]; !ok {
			delete(c.mounted, id)
		}
	}
}

func (c *Controller) payloadLocked() cv.Payload {
	p := cv.ToPayload(c.title, c.id, c.store.Layout())
	p.Visibility = c.visibility
	p.Status = c.status
	return p
}

func (c *Controller) dirtyLocked() bool {
	if c.phase == phaseUninitialized {
		return false
	}
	return cv.Fingerprint(c.payloadLocked()) != c.baseline
}

func (c *Controller) stateLocked() State {
	switch c.phase {
	case phaseUninitialized:
		return StateUninitialized
	case phaseSaving:
		return StateSaving
	case phaseSaveFailed:
		return StateSaveFailed
	}
	if c.dirtyLocked() {
		return StateDirty
	}
	if c.phase == phaseSaved {
		return StateSaved
	}
	return StateLoaded
}

// State 返回当前状态。
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// Dirty 以序列化字符串比较当前状态与最近一次保存的基线。
func (c *Controller) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirtyLocked()
}

// Payload 返回当前状态的序列化形式。
func (c *Controller) Payload() cv.Payload {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.payloadLocked()
}

// Layout 返回当前布局。
func (c *Controller) Layout() cv.Layout {
	return c.store.Layout()
}

// Snapshot 返回当前状态快照。
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Snapshot{
		State:      c.stateLocked(),
		Mode:       c.mode,
		ReadOnly:   c.readOnly,
		Dirty:      c.dirtyLocked(),
		ID:         c.id,
		Title:      c.title,
		Visibility: c.visibility,
		Layout:     c.store.Layout(),
		Drag:       c.drag.State(),
		Selected:   c.selected,
	}
	if c.loadErr != nil {
		s.LoadError = c.loadErr.Error()
	}
	if c.saveErr != nil {
		s.SaveError = c.saveErr.Error()
	}
	return s
}

// edit 在可编辑状态下执行 fn，并在布局变化后同步挂载。
func (c *Controller) edit(fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editableLocked(); err != nil {
		return err
	}
	if err := fn(); err != nil {
		return err
	}
	c.syncMountsLocked()
	if c.phase == phaseSaved || c.phase == phaseSaveFailed {
		c.phase = phaseLoaded
	}
	return nil
}

func (c *Controller) editableLocked() error {
	switch {
	case c.phase == phaseUninitialized:
		return ErrNotLoaded
	case c.readOnly:
		return ErrReadOnly
	case c.phase == phaseSaving:
		return ErrSaving
	}
	return nil
}

// SetTitle 修改 CV 名称。
func (c *Controller) SetTitle(title string) error {
	return c.edit(func() error {
		c.title = title
		return nil
	})
}

// SetVisibility 修改分享范围。
func (c *Controller) SetVisibility(v cv.Visibility) error {
	return c.edit(func() error {
		c.visibility = v
		return nil
	})
}

// MoveBlock 跨区移动块，toIndex 为负数时追加。
func (c *Controller) MoveBlock(id string, from, to cv.Zone, toIndex int) (bool, error) {
	var changed bool
	err := c.edit(func() error {
		changed = c.store.MoveBlock(id, from, to, toIndex)
		return nil
	})
	return changed, err
}

// ReorderBlock 区内重排。
func (c *Controller) ReorderBlock(zone cv.Zone, activeID, overID string) (bool, error) {
	var changed bool
	err := c.edit(func() error {
		changed = c.store.ReorderBlock(zone, activeID, overID)
		return nil
	})
	return changed, err
}

// UpdateBlockData 浅合并块数据。
func (c *Controller) UpdateBlockData(id string, patch map[string]any) (bool, error) {
	var changed bool
	err := c.edit(func() error {
		changed = c.store.UpdateBlockData(id, patch)
		return nil
	})
	return changed, err
}

// SetBlockData 整体替换块数据。
func (c *Controller) SetBlockData(id string, data map[string]any) (bool, error) {
	var changed bool
	err := c.edit(func() error {
		changed = c.store.SetBlockData(id, data)
		return nil
	})
	return changed, err
}

// PickUp 开始拖拽。
func (c *Controller) PickUp(blockID string) (bool, error) {
	var ok bool
	err := c.edit(func() error {
		ok = c.drag.PickUp(blockID)
		return nil
	})
	return ok, err
}

// Hover 更新拖拽悬停区域，仅影响视觉反馈。
func (c *Controller) Hover(zone cv.Zone) bool {
	return c.drag.Hover(zone)
}

// Drop 结束拖拽并执行至多一次变更。
func (c *Controller) Drop(overID string) (bool, error) {
	var changed bool
	err := c.edit(func() error {
		changed = c.drag.Drop(overID)
		return nil
	})
	if err != nil {
		c.drag.Cancel()
	}
	return changed, err
}

// CancelDrag 取消拖拽。
func (c *Controller) CancelDrag() {
	c.drag.Cancel()
}

// Select 记录面板中选中的块，不参与持久化。
func (c *Controller) Select(blockID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = blockID
}

// SetField 修改单实体块字段。
func (c *Controller) SetField(blockID, field, value string) error {
	return c.edit(func() error {
		editor, err := c.fieldEditor(blockID)
		if err != nil {
			return err
		}
		return editor.SetField(c.store, blockID, field, value)
	})
}

// AddEntry 在列表块中追加空条目，返回条目 ID。
func (c *Controller) AddEntry(blockID string) (string, error) {
	var entryID string
	err := c.edit(func() error {
		list, err := c.listRenderer(blockID)
		if err != nil {
			return err
		}
		entryID, err = list.AddEntry(c.store, blockID)
		return err
	})
	return entryID, err
}

// UpdateEntry 修改列表条目字段。
func (c *Controller) UpdateEntry(blockID, entryID, field, value string) error {
	return c.edit(func() error {
		list, err := c.listRenderer(blockID)
		if err != nil {
			return err
		}
		return list.UpdateEntry(c.store, blockID, entryID, field, value)
	})
}

// RemoveEntry 删除列表条目。
func (c *Controller) RemoveEntry(blockID, entryID string) error {
	return c.edit(func() error {
		list, err := c.listRenderer(blockID)
		if err != nil {
			return err
		}
		return list.RemoveEntry(c.store, blockID, entryID)
	})
}

// UploadAvatar 上传头像。上传期间只挂起该块，不持有控制器锁；
// 写回 URL 前重新检查可编辑状态，上传完成时若正在保存则丢弃结果并返回 ErrSaving。
func (c *Controller) UploadAvatar(ctx context.Context, blockID string, img render.Image) (string, error) {
	c.mu.Lock()
	err := c.editableLocked()
	c.mu.Unlock()
	if err != nil {
		return "", err
	}
	avatar := c.renderers.Avatar()
	url, err := avatar.UploadImage(ctx, c.store, blockID, img)
	if err != nil {
		return "", err
	}
	if err := c.edit(func() error {
		return avatar.SetField(c.store, blockID, "image", url)
	}); err != nil {
		return "", err
	}
	return url, nil
}

func (c *Controller) fieldEditor(blockID string) (render.FieldEditor, error) {
	b, ok := c.store.Block(blockID)
	if !ok {
		return nil, render.ErrUnknownBlock
	}
	editor, ok := c.renderers.Fields(b.Type)
	if !ok {
		return nil, render.ErrWrongType
	}
	return editor, nil
}

func (c *Controller) listRenderer(blockID string) (*render.ListRenderer, error) {
	b, ok := c.store.Block(blockID)
	if !ok {
		return nil, render.ErrUnknownBlock
	}
	list, ok := c.renderers.List(b.Type)
	if !ok {
		return nil, render.ErrWrongType
	}
	return list, nil
}

// Save 校验后保存整个 payload。校验失败不改变状态；保存失败进入 SaveFailed，仍保留未保存标记。
func (c *Controller) Save(ctx context.Context) (SaveResult, error) {
	c.mu.Lock()
	switch {
	case c.phase == phaseUninitialized:
		c.mu.Unlock()
		return SaveResult{}, ErrNotLoaded
	case c.readOnly:
		c.mu.Unlock()
		return SaveResult{}, ErrReadOnly
	case c.phase == phaseSaving:
		c.mu.Unlock()
		return SaveResult{}, ErrSaving
	case c.persist == nil:
		c.mu.Unlock()
		return SaveResult{}, ErrNoPersistence
	}
	if err := cv.Validate(c.store.Layout()); err != nil {
		c.mu.Unlock()
		return SaveResult{}, err
	}
	payload := c.payloadLocked()
	c.drag.Cancel()
	c.phase = phaseSaving
	c.mu.Unlock()

	res, err := c.persist.Save(ctx, payload)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.phase = phaseSaveFailed
		c.saveErr = err
		return SaveResult{}, err
	}
	if payload.ID.IsZero() && !res.ID.IsZero() {
		c.id = res.ID
		payload.ID = res.ID
	}
	if res.ID.IsZero() {
		res.ID = c.id
	}
	c.baseline = cv.Fingerprint(payload)
	c.saveErr = nil
	c.phase = phaseSaved
	return res, nil
}

// Preview 渲染预览；只读会话总是只读渲染。
func (c *Controller) Preview(opts render.PreviewOptions) ([]byte, error) {
	c.mu.Lock()
	if c.readOnly {
		opts.ReadOnly = true
	}
	c.mu.Unlock()
	return c.renderers.Preview(c.store.Layout(), opts)
}

// Panel 渲染布局面板。
func (c *Controller) Panel() ([]byte, error) {
	c.mu.Lock()
	state := render.PanelState{Selected: c.selected, Drag: c.drag.State()}
	c.mu.Unlock()
	return render.Panel(c.store.Layout(), state)
}

// DragOverlay 渲染拖拽浮层；没有拖拽时返回 false。
func (c *Controller) DragOverlay() ([]byte, bool, error) {
	b, ok := c.drag.Active()
	if !ok {
		return nil, false, nil
	}
	out, err := render.DragOverlay(b)
	return out, true, err
}

// PrintDocument 生成打印页面。
func (c *Controller) PrintDocument() ([]byte, error) {
	c.mu.Lock()
	title := c.title
	c.mu.Unlock()
	return c.renderers.PrintDocument(title, c.store.Layout())
}
