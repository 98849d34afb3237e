package models

import (
	"time"

	"github.com/google/uuid"
)

// Media is an uploaded image that an activity can reference.
type Media struct {
	ID          uuid.UUID `json:"id"`
	ObjectKey   string    `json:"-"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"createdAt"`
}
