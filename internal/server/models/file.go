// Package models defines server-side data models persisted in the database.
package models

import (
	"fmt"
	"time"
)

// File is the metadata of an uploaded image. The bytes live in object
// storage under OriginalKey; processed variants are listed in ProcessedKeys
// in the order they were produced.
type File struct {
	ID            string
	OwnerID       string
	OriginalKey   string
	Width         int
	Height        int
	ProcessedKeys []string
	CreatedAt     time.Time
}

func (f *File) Size() Size {
	return Size{Width: f.Width, Height: f.Height}
}

// ProcessedKey is the object key of the kind variant of fileID.
func ProcessedKey(fileID string, kind TaskKind) string {
	return fmt.Sprintf("processed/%s_%s.png", fileID, kind)
}
