package model

import "time"

const (
	RoleUser        = "user"
	RoleTempleAdmin = "temple_admin"
)

const (
	GenderMale   = "MALE"
	GenderFemale = "FEMALE"
	GenderAll    = "ALL"
)

type Temple struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	City      string    `db:"city,omitempty" json:"city,omitempty"`
	Points    int       `db:"points" json:"points"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type User struct {
	ID           int64     `db:"id" json:"id"`
	TempleID     int64     `db:"temple_id" json:"temple_id"`
	FirstName    string    `db:"first_name" json:"first_name"`
	LastName     string    `db:"last_name" json:"last_name"`
	Email        string    `db:"email" json:"email"`
	AadharNumber string    `db:"aadhar_number" json:"aadhar_number"`
	Gender       string    `db:"gender" json:"gender"`
	Role         string    `db:"role" json:"role"`
	PassHash     string    `db:"pass_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

type TeamEvent struct {
	ID            int64  `db:"id" json:"id"`
	EventTypeID   int64  `db:"event_type_id" json:"event_type_id"`
	EventTypeName string `db:"event_type_name" json:"event_type_name"`
	Gender        string `db:"gender" json:"gender"`
	TeamSize      int    `db:"team_size" json:"team_size"`
}

type Team struct {
	ID        int64     `db:"id" json:"id"`
	TempleID  int64     `db:"temple_id" json:"temple_id"`
	EventID   int64     `db:"event_id" json:"event_id"`
	Members   []User    `db:"-" json:"members"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
