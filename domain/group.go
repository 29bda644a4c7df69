package domain

import "time"

// Group is a durable shared room. Membership is stored separately.
type Group struct {
	ID          GroupID
	Name        string
	Description string
	CreatedBy   UserID
	CreatedAt   time.Time
	IsActive    bool
}

type User struct {
	ID        UserID
	Username  string
	CreatedAt time.Time
}
