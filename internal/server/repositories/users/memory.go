package users

import (
	"context"

	"github.com/alphadose/haxmap"
	"github.com/dmitrijs2005/photomagic/internal/common"
	"github.com/dmitrijs2005/photomagic/internal/server/models"
)

type MemoryRepository struct {
	users *haxmap.Map[string, models.User]
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{users: haxmap.New[string, models.User]()}
}

func (r *MemoryRepository) Put(u *models.User) {
	r.users.Set(u.ID, *u)
}

func (r *MemoryRepository) GetEntitlement(_ context.Context, ownerID string) (bool, error) {
	u, ok := r.users.Get(ownerID)
	if !ok {
		return false, common.ErrorNotFound
	}
	return u.Entitled(), nil
}
