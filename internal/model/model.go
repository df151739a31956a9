package model

import "time"

const (
	StatusBooked    = "BOOKED"
	StatusCompleted = "COMPLETED"
	StatusCancelled = "CANCELLED"
)

func ValidStatus(s string) bool {
	return s == StatusBooked || s == StatusCompleted || s == StatusCancelled
}

// Business is a tenant. Exactly one per identity-provider user, enforced at
// creation time in the handler, not by a database constraint.
type Business struct {
	ID        string
	OwnerID   string
	Name      string
	Timezone  string
	CreatedAt time.Time
}

type Client struct {
	ID         string
	BusinessID string
	Name       string
	Email      string
	Phone      string
	Notes      string
	CreatedAt  time.Time
}

type Appointment struct {
	ID         string
	BusinessID string
	ClientID   string
	StartsAt   time.Time
	EndsAt     time.Time
	Status     string
	Notes      string
	CreatedAt  time.Time
}
