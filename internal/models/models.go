package models

import (
	"errors"
	"time"
)

// ErrNotFound is returned by record stores when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Project is the top-level container that owns plans, pins and labels.
type Project struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	ProjectNumber int64     `json:"project_number"`
	CreatedAt     time.Time `json:"created_at"`
}

// Plan is a PDF floor or site plan stored in the blob store.
type Plan struct {
	ID        int64  `json:"id"`
	ProjectID int64  `json:"project_id"`
	Name      string `json:"name"`
	FilePath  string `json:"file_path"`
}

// Status is a colored label a pin always carries.
type Status struct {
	ID        int64  `json:"id"`
	ProjectID int64  `json:"project_id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	Order     int64  `json:"order"`
}

// Category is an optional iconed label on a pin.
type Category struct {
	ID        int64  `json:"id"`
	ProjectID int64  `json:"project_id"`
	Name      string `json:"name"`
	Icon      string `json:"icon"`
	Order     int64  `json:"order"`
}

// Member is a project member referenced as creator or assignee.
type Member struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// DisplayName prefers the member name and falls back to the email.
func (m Member) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	return m.Email
}

// Photo is an image attached to a single pin.
type Photo struct {
	ID        int64  `json:"id"`
	PinID     int64  `json:"pin_id"`
	PublicURL string `json:"public_url"`
}

// Pin is a task marker placed at normalized coordinates on a plan page.
// X and Y are relative to the page viewport at scale 1.
type Pin struct {
	ID         int64      `json:"id"`
	ProjectID  int64      `json:"project_id"`
	PlanID     int64      `json:"plan_id"`
	Name       string     `json:"name"`
	Note       string     `json:"note"`
	X          float64    `json:"x"`
	Y          float64    `json:"y"`
	PinNumber  int64      `json:"pin_number"`
	StatusID   *int64     `json:"status_id,omitempty"`
	CategoryID *int64     `json:"category_id,omitempty"`
	DueDate    *time.Time `json:"due_date,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`

	Creator  *Member  `json:"creator,omitempty"`
	Assignee *Member  `json:"assignee,omitempty"`
	Plan     *Plan    `json:"plan,omitempty"`
	Project  *Project `json:"project,omitempty"`
	Photos   []Photo  `json:"photos"`
}
