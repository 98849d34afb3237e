package models

import (
	"time"

	"github.com/google/uuid"
)

// Category groups activities.
type Category struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}
