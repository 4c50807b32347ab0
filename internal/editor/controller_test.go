package editor

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvPortal/internal/cv"
	"cvPortal/internal/render"
)

type fakePersistence struct {
	mu      sync.Mutex
	saved   []cv.Payload
	saveErr error
	nextID  cv.ID
	cvs     map[cv.ID]cv.Payload
	shared  map[string]cv.Payload
	block   chan struct{}
	entered chan struct{}
}

func (f *fakePersistence) Save(ctx context.Context, p cv.Payload) (SaveResult, error) {
	if f.block != nil {
		f.entered <- struct{}{}
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return SaveResult{}, f.saveErr
	}
	f.saved = append(f.saved, p)
	if p.ID.IsZero() {
		return SaveResult{ID: f.nextID, Created: true}, nil
	}
	return SaveResult{ID: p.ID}, nil
}

func (f *fakePersistence) Fetch(ctx context.Context, id cv.ID) (cv.Payload, error) {
	p, ok := f.cvs[id]
	if !ok {
		return cv.Payload{}, errors.New("not found")
	}
	return p, nil
}

func (f *fakePersistence) FetchShared(ctx context.Context, token string) (cv.Payload, error) {
	p, ok := f.shared[token]
	if !ok {
		return cv.Payload{}, errors.New("not shared")
	}
	return p, nil
}

// minimalPayload 只有一个填写完整的个人信息块。
func minimalPayload(id cv.ID) cv.Payload {
	return cv.Payload{
		ID:    id,
		Title: "Backend CV",
		Layout: cv.IDLayout{
			Left: []string{"p"},
		},
		Blocks: []cv.Block{{ID: "p", Type: cv.TypeProfile, Title: "Profile", Data: map[string]any{
			"dob": "2000-01-01", "gender": "female", "phone": "0123",
			"email": "jane@example.com", "address": "1 Main St",
		}}},
		Visibility: cv.VisibilityPrivate,
	}
}

func TestController_MountDefault(t *testing.T) {
	c := NewController(&fakePersistence{}, nil)
	assert.Equal(t, StateUninitialized, c.State())

	require.NoError(t, c.Mount(context.Background(), Incoming{}))
	assert.Equal(t, StateLoaded, c.State())
	assert.False(t, c.Dirty())

	layout := c.Layout()
	assert.Len(t, layout.Left, 5)
	assert.Len(t, layout.Right, 5)

	activity, ok := layout.Find("activity")
	require.True(t, ok)
	assert.Len(t, cv.Entries(activity.Data, "activities"), 1)
}

func TestController_MountSeedsWithoutDirty(t *testing.T) {
	p := cv.Payload{
		Layout: cv.IDLayout{Right: []string{"e"}},
		Blocks: []cv.Block{{ID: "e", Type: cv.TypeEducation, Title: "Education", Data: map[string]any{}}},
	}
	c := NewController(nil, nil)
	require.NoError(t, c.Mount(context.Background(), Incoming{Mode: ModeEdit, CV: &p}))
	assert.False(t, c.Dirty())

	b, _ := c.Layout().Find("e")
	assert.Len(t, cv.Entries(b.Data, "educations"), 1)
}

func TestController_EditMakesDirty(t *testing.T) {
	p := minimalPayload("3")
	c := NewController(&fakePersistence{}, nil)
	require.NoError(t, c.Mount(context.Background(), Incoming{Mode: ModeEdit, CV: &p}))

	require.NoError(t, c.SetField("p", "phone", "999"))
	assert.Equal(t, StateDirty, c.State())

	require.NoError(t, c.SetField("p", "phone", "0123"))
	assert.Equal(t, StateLoaded, c.State())
}

func TestController_SaveCreateAdoptsID(t *testing.T) {
	persist := &fakePersistence{nextID: "77"}
	p := minimalPayload("")
	c := NewController(persist, nil)
	require.NoError(t, c.Mount(context.Background(), Incoming{Mode: ModeCreate, CV: &p}))
	require.NoError(t, c.SetTitle("Renamed"))

	res, err := c.Save(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, cv.ID("77"), res.ID)
	assert.Equal(t, StateSaved, c.State())
	assert.False(t, c.Dirty())
	assert.Equal(t, cv.ID("77"), c.Payload().ID)

	res, err = c.Save(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Created)
	require.Len(t, persist.saved, 2)
	assert.Equal(t, cv.ID("77"), persist.saved[1].ID)
}

func TestController_SaveValidationFailure(t *testing.T) {
	persist := &fakePersistence{}
	p := minimalPayload("1")
	p.Blocks[0].Data["email"] = "not-an-email"
	c := NewController(persist, nil)
	require.NoError(t, c.Mount(context.Background(), Incoming{Mode: ModeEdit, CV: &p}))
	before := c.Layout()

	_, err := c.Save(context.Background())
	var ve *cv.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, cv.TypeProfile, ve.Type)
	assert.Empty(t, persist.saved)
	assert.Equal(t, before, c.Layout())
	assert.Equal(t, StateLoaded, c.State())
}

func TestController_SaveFailureStaysEditable(t *testing.T) {
	persist := &fakePersistence{saveErr: errors.New("title already exists")}
	p := minimalPayload("1")
	c := NewController(persist, nil)
	require.NoError(t, c.Mount(context.Background(), Incoming{Mode: ModeEdit, CV: &p}))
	require.NoError(t, c.SetTitle("dup"))

	_, err := c.Save(context.Background())
	require.EqualError(t, err, "title already exists")
	assert.Equal(t, StateSaveFailed, c.State())
	assert.True(t, c.Dirty())
	assert.Equal(t, "title already exists", c.Snapshot().SaveError)

	require.NoError(t, c.SetTitle("unique"))
	assert.Equal(t, StateDirty, c.State())

	persist.saveErr = nil
	_, err = c.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateSaved, c.State())
}

func TestController_EditsRejectedWhileSaving(t *testing.T) {
	persist := &fakePersistence{block: make(chan struct{}), entered: make(chan struct{})}
	p := minimalPayload("1")
	c := NewController(persist, nil)
	require.NoError(t, c.Mount(context.Background(), Incoming{Mode: ModeEdit, CV: &p}))

	done := make(chan error, 1)
	go func() {
		_, err := c.Save(context.Background())
		done <- err
	}()
	<-persist.entered

	assert.Equal(t, StateSaving, c.State())
	assert.ErrorIs(t, c.SetTitle("x"), ErrSaving)
	_, err := c.Save(context.Background())
	assert.ErrorIs(t, err, ErrSaving)

	close(persist.block)
	require.NoError(t, <-done)
	assert.Equal(t, StateSaved, c.State())
}

func TestController_ShareTokenIsReadOnly(t *testing.T) {
	p := minimalPayload("5")
	p.Visibility = cv.VisibilityPublic
	persist := &fakePersistence{shared: map[string]cv.Payload{"tok": p}}
	c := NewController(persist, nil)

	require.NoError(t, c.Mount(context.Background(), Incoming{ShareToken: "tok"}))
	snap := c.Snapshot()
	assert.True(t, snap.ReadOnly)
	assert.Equal(t, ModeView, snap.Mode)

	assert.ErrorIs(t, c.SetTitle("x"), ErrReadOnly)
	_, err := c.MoveBlock("p", cv.ZoneLeft, cv.ZoneUnused, -1)
	assert.ErrorIs(t, err, ErrReadOnly)
	_, err = c.Save(context.Background())
	assert.ErrorIs(t, err, ErrReadOnly)

	html, err := c.Preview(render.PreviewOptions{Mode: render.ModeEditor})
	require.NoError(t, err)
	assert.NotContains(t, string(html), "<input")
}

func TestController_FetchFailureFallsBack(t *testing.T) {
	c := NewController(&fakePersistence{}, nil)
	err := c.Mount(context.Background(), Incoming{Mode: ModeEdit, CVID: "404"})
	require.Error(t, err)

	assert.Equal(t, StateLoaded, c.State())
	assert.NotEmpty(t, c.Snapshot().LoadError)
	assert.Len(t, c.Layout().Left, 5)
	require.NoError(t, c.SetTitle("still editable"))
}

func TestController_FetchByID(t *testing.T) {
	persist := &fakePersistence{cvs: map[cv.ID]cv.Payload{"9": minimalPayload("9")}}
	c := NewController(persist, nil)
	require.NoError(t, c.Mount(context.Background(), Incoming{Mode: ModeEdit, CVID: "9"}))
	assert.Equal(t, "Backend CV", c.Snapshot().Title)
	assert.Equal(t, []string{"p"}, []string{c.Layout().Left[0].ID})
}

func TestController_MovedBlockIsMounted(t *testing.T) {
	p := minimalPayload("1")
	p.Layout.Unused = []string{"sk"}
	p.Blocks = append(p.Blocks, cv.Block{ID: "sk", Type: cv.TypeSkill, Title: "Skills", Data: map[string]any{}})
	c := NewController(&fakePersistence{}, nil)
	require.NoError(t, c.Mount(context.Background(), Incoming{Mode: ModeEdit, CV: &p}))

	b, _ := c.Layout().Find("sk")
	assert.Empty(t, cv.Entries(b.Data, "skills"))

	changed, err := c.MoveBlock("sk", cv.ZoneUnused, cv.ZoneRight, 0)
	require.NoError(t, err)
	require.True(t, changed)
	b, _ = c.Layout().Find("sk")
	assert.Len(t, cv.Entries(b.Data, "skills"), 1)
}

func TestController_DragAndEntries(t *testing.T) {
	c := NewController(&fakePersistence{}, nil)
	require.NoError(t, c.Mount(context.Background(), Incoming{}))

	ok, err := c.PickUp("skill")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, c.Hover(cv.ZoneRight))
	overlay, active, err := c.DragOverlay()
	require.NoError(t, err)
	assert.True(t, active)
	assert.Contains(t, string(overlay), "Skills")

	changed, err := c.Drop("career")
	require.NoError(t, err)
	require.True(t, changed)
	assert.Equal(t, "skill", c.Layout().Right[0].ID)

	entryID, err := c.AddEntry("skill")
	require.NoError(t, err)
	require.NoError(t, c.UpdateEntry("skill", entryID, "name", "Go"))
	require.NoError(t, c.RemoveEntry("skill", entryID))
	assert.Error(t, c.UpdateEntry("profile", entryID, "name", "Go"))

	c.Select("skill")
	panel, err := c.Panel()
	require.NoError(t, err)
	assert.Contains(t, string(panel), `sortable-block--selected" data-block-id="skill"`)
}

func TestController_UnmountResets(t *testing.T) {
	p := minimalPayload("1")
	c := NewController(&fakePersistence{}, nil)
	require.NoError(t, c.Mount(context.Background(), Incoming{Mode: ModeEdit, CV: &p}))
	c.Unmount()

	assert.Equal(t, StateUninitialized, c.State())
	assert.Len(t, c.Layout().Left, 5)
	assert.ErrorIs(t, c.SetTitle("x"), ErrNotLoaded)
	_, err := c.Save(context.Background())
	assert.ErrorIs(t, err, ErrNotLoaded)
}

func TestController_SeededEntryMustBeFilledBeforeSave(t *testing.T) {
	persist := &fakePersistence{}
	p := minimalPayload("1")
	p.Layout.Right = []string{"sk"}
	p.Blocks = append(p.Blocks, cv.Block{ID: "sk", Type: cv.TypeSkill, Title: "Skills", Data: map[string]any{"skills": []any{}}})
	c := NewController(persist, nil)
	require.NoError(t, c.Mount(context.Background(), Incoming{Mode: ModeEdit, CV: &p}))
	assert.False(t, c.Dirty())

	b, _ := c.Layout().Find("sk")
	entries := cv.Entries(b.Data, "skills")
	require.Len(t, entries, 1)

	_, err := c.Save(context.Background())
	var ve *cv.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "sk", ve.BlockID)
	assert.Empty(t, persist.saved)

	require.NoError(t, c.UpdateEntry("sk", cv.Value(entries[0], "id"), "name", "Go"))
	_, err = c.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateSaved, c.State())

	require.NoError(t, c.RemoveEntry("sk", cv.Value(entries[0], "id")))
	_, err = c.Save(context.Background())
	require.NoError(t, err)
	require.Len(t, persist.saved, 2)
}

type blockingHost struct {
	url     string
	started chan struct{}
	release chan struct{}
}

func (h *blockingHost) Upload(ctx context.Context, img render.Image) (string, error) {
	h.started <- struct{}{}
	<-h.release
	return h.url, nil
}

func TestController_AvatarUploadFinishingDuringSaveIsDropped(t *testing.T) {
	persist := &fakePersistence{block: make(chan struct{}), entered: make(chan struct{})}
	host := &blockingHost{url: "https://img.example/a.png", started: make(chan struct{}), release: make(chan struct{})}
	p := minimalPayload("1")
	p.Layout.Unused = []string{"av"}
	p.Blocks = append(p.Blocks, cv.Block{ID: "av", Type: cv.TypeAvatar, Title: "Avatar", Data: map[string]any{"image": "old"}})
	c := NewController(persist, host)
	require.NoError(t, c.Mount(context.Background(), Incoming{Mode: ModeEdit, CV: &p}))

	uploaded := make(chan error, 1)
	go func() {
		_, err := c.UploadAvatar(context.Background(), "av", render.Image{Filename: "a.png"})
		uploaded <- err
	}()
	<-host.started

	saved := make(chan error, 1)
	go func() {
		_, err := c.Save(context.Background())
		saved <- err
	}()
	<-persist.entered

	close(host.release)
	assert.ErrorIs(t, <-uploaded, ErrSaving)

	close(persist.block)
	require.NoError(t, <-saved)
	b, _ := c.Layout().Find("av")
	assert.Equal(t, "old", cv.Text(b.Data, "image"))
	assert.Equal(t, StateSaved, c.State())
	assert.False(t, c.renderers.Avatar().Uploading("av"))
}

func TestController_LeadingZeroIDStillTracksChanges(t *testing.T) {
	p := minimalPayload("01")
	c := NewController(&fakePersistence{}, nil)
	require.NoError(t, c.Mount(context.Background(), Incoming{Mode: ModeEdit, CV: &p}))
	assert.False(t, c.Dirty())

	require.NoError(t, c.SetTitle("Renamed"))
	assert.True(t, c.Dirty())

	raw, err := json.Marshal(c.Snapshot())
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"id":1`)
}
