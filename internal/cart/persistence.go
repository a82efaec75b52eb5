package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hitoshi/freshmart/internal/model"
	"github.com/hitoshi/freshmart/internal/repository"
)

// ErrCorrupt は永続化済みのカートを復元できない場合のエラー。
var ErrCorrupt = errors.New("stored cart is corrupt")

// Persistence はカート内容の永続化ポート。
type Persistence interface {
	Load(ctx context.Context) ([]model.CartLine, error)
	Save(ctx context.Context, lines []model.CartLine) error
}

// repoPersistence はStateRepositoryの"cart"キーにJSON配列として保存するPersistence。
type repoPersistence struct {
	repo     repository.StateRepository
	clientID string
}

// NewRepositoryPersistence はクライアント状態リポジトリを使うPersistenceを返す。
func NewRepositoryPersistence(repo repository.StateRepository, clientID string) Persistence {
	return &repoPersistence{repo: repo, clientID: clientID}
}

func (p *repoPersistence) Load(ctx context.Context) ([]model.CartLine, error) {
	data, err := p.repo.Get(ctx, p.clientID, repository.KeyCart)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if data == nil {
		return nil, nil
	}

	var lines []model.CartLine
	if err := json.Unmarshal(data, &lines); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return lines, nil
}

func (p *repoPersistence) Save(ctx context.Context, lines []model.CartLine) error {
	if lines == nil {
		lines = []model.CartLine{}
	}
	data, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("failed to encode cart: %w", err)
	}
	if err := p.repo.Put(ctx, p.clientID, repository.KeyCart, data); err != nil {
		return fmt.Errorf("failed to persist cart: %w", err)
	}
	return nil
}
