// Package files reads image metadata and records processed variants.
package files

import (
	"context"

	"github.com/dmitrijs2005/photomagic/internal/server/models"
)

type Repository interface {
	// Get returns common.ErrorNotFound for an unknown id.
	Get(ctx context.Context, fileID string) (*models.File, error)
	// AppendProcessedKey adds key to the end of the file's processed list.
	// Existing entries are kept.
	AppendProcessedKey(ctx context.Context, fileID, key string) error
}
