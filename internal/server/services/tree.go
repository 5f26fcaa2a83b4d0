package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/hpcdrive/internal/server/blobstore"
	"github.com/dmitrijs2005/hpcdrive/internal/server/models"
	"github.com/dmitrijs2005/hpcdrive/internal/server/repositories/items"
	"github.com/google/uuid"
)

// subtree returns root and all of its descendants, breadth-first.
func subtree(ctx context.Context, repo items.Repository, root *models.Item) ([]*models.Item, error) {
	out := []*models.Item{root}
	for i := 0; i < len(out); i++ {
		if !out[i].IsFolder() {
			continue
		}
		children, err := repo.ListAllChildren(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out = append(out, children...)
	}
	return out, nil
}

// purgeSubtree deletes root's row, letting the foreign keys cascade to the
// subtree, then removes the payload of every file in it. Run it inside a
// transaction so a failed payload delete rolls the rows back.
func purgeSubtree(ctx context.Context, repo items.Repository, blobs blobstore.Store, root *models.Item) (int, error) {
	nodes, err := subtree(ctx, repo, root)
	if err != nil {
		return 0, err
	}
	if err := repo.Delete(ctx, root.ID); err != nil {
		return 0, notFound(err, "item %s not found", root.ID)
	}
	if err := deletePayloads(ctx, blobs, nodes); err != nil {
		return 0, err
	}
	return len(nodes), nil
}

func deletePayloads(ctx context.Context, blobs blobstore.Store, nodes []*models.Item) error {
	for _, n := range nodes {
		if n.File == nil || n.File.StoragePath == "" {
			continue
		}
		if err := blobs.Delete(ctx, n.File.StoragePath); err != nil {
			return fmt.Errorf("delete payload of %s: %w", n.ID, err)
		}
	}
	return nil
}

// isDescendant reports whether candidate is ancestor itself or lies below it.
func isDescendant(ctx context.Context, repo items.Repository, ancestor uuid.UUID, candidate *models.Item) (bool, error) {
	seen := map[uuid.UUID]bool{}
	for cur := candidate; ; {
		if cur.ID == ancestor {
			return true, nil
		}
		if cur.ParentID == nil || seen[cur.ID] {
			return false, nil
		}
		seen[cur.ID] = true
		next, err := repo.GetByID(ctx, *cur.ParentID)
		if err != nil {
			return false, err
		}
		cur = next
	}
}
