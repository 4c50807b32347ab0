package cvstore

import (
	"context"

	"cvPortal/internal/cv"
	"cvPortal/internal/editor"
)

// Owner 把仓库绑定到一个用户，作为编辑会话的持久化后端。
type Owner struct {
	repo   *Repository
	userID uint
}

// ForUser 返回绑定到 userID 的持久化后端。
func (r *Repository) ForUser(userID uint) *Owner {
	return &Owner{repo: r, userID: userID}
}

func (o *Owner) Save(ctx context.Context, p cv.Payload) (editor.SaveResult, error) {
	rec, created, err := o.repo.Save(ctx, o.userID, p)
	if err != nil {
		return editor.SaveResult{}, err
	}
	return editor.SaveResult{ID: rec.Payload.ID, Created: created}, nil
}

func (o *Owner) Fetch(ctx context.Context, id cv.ID) (cv.Payload, error) {
	rec, err := o.repo.Get(ctx, o.userID, id)
	if err != nil {
		return cv.Payload{}, err
	}
	return rec.Payload, nil
}

func (o *Owner) FetchShared(ctx context.Context, token string) (cv.Payload, error) {
	rec, err := o.repo.GetShared(ctx, token)
	if err != nil {
		return cv.Payload{}, err
	}
	return rec.Payload, nil
}
