package models

import (
	"time"
)

// Image binary data lives in the persistent store; the per-process disk cache
// is a disposable replica. Data is omitted from queries unless explicitly
// selected.
type Image struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Iid       string    `gorm:"uniqueIndex;size:8;not null" json:"iid"`
	Filename  string    `json:"filename"`
	Mimetype  string    `json:"mimetype"`
	Size      int64     `json:"size"`
	Data      []byte    `gorm:"type:bytea" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// ImageMetaColumns lists every Image column except data.
const ImageMetaColumns = "id, iid, filename, mimetype, size, created_at"
