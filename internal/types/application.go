// Package types provides the domain types shared by the ApplyTrak client core and email functions.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"fmt"
	"time"
)

// DateLayout is the wire format of Application.DateApplied.
const DateLayout = "2006-01-02"

// EmploymentType is how the role is performed.
type EmploymentType string

const (
	EmploymentRemote EmploymentType = "Remote"
	EmploymentHybrid EmploymentType = "Hybrid"
	EmploymentOnsite EmploymentType = "Onsite"
)

// Status is the stage an application has reached.
type Status string

const (
	StatusApplied   Status = "Applied"
	StatusInterview Status = "Interview"
	StatusOffer     Status = "Offer"
	StatusRejected  Status = "Rejected"
)

// Statuses lists every status in pipeline order.
var Statuses = []Status{StatusApplied, StatusInterview, StatusOffer, StatusRejected}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// SyncStatus marks whether a local record has a confirmed counterpart in the hosted backend.
type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncSynced  SyncStatus = "synced"
)

// Application is a single tracked job application.
type Application struct {
	ID          string         `json:"id"`
	Company     string         `json:"company"`
	Position    string         `json:"position"`
	DateApplied string         `json:"dateApplied"`
	Type        EmploymentType `json:"type"`
	Status      Status         `json:"status"`
	Location    string         `json:"location,omitempty"`
	Salary      string         `json:"salary,omitempty"`
	JobSource   string         `json:"jobSource,omitempty"`
	JobURL      string         `json:"jobUrl,omitempty"`
	Notes       string         `json:"notes,omitempty"`
	Attachments []Attachment   `json:"attachments,omitempty"`
	SyncStatus  SyncStatus     `json:"syncStatus"`
	RemoteID    string         `json:"cloudId,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// NeedsSync reports whether the record still lacks a confirmed remote counterpart.
func (a *Application) NeedsSync() bool {
	return a.SyncStatus == SyncPending || a.RemoteID == ""
}

// AppliedOn parses DateApplied in the given location.
func (a *Application) AppliedOn(loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, a.DateApplied, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date applied %q: %w", a.DateApplied, err)
	}
	return t, nil
}

// ApplicationInput is the form payload used to create or edit an application.
type ApplicationInput struct {
	Company     string         `json:"company" validate:"required,max=100"`
	Position    string         `json:"position" validate:"required,max=100"`
	DateApplied string         `json:"dateApplied" validate:"required,datetime=2006-01-02"`
	Type        EmploymentType `json:"type" validate:"required,oneof=Remote Hybrid Onsite"`
	Status      Status         `json:"status" validate:"omitempty,oneof=Applied Interview Offer Rejected"`
	Location    string         `json:"location,omitempty" validate:"max=100"`
	Salary      string         `json:"salary,omitempty" validate:"max=50"`
	JobSource   string         `json:"jobSource,omitempty" validate:"max=100"`
	JobURL      string         `json:"jobUrl,omitempty" validate:"omitempty,url"`
	Notes       string         `json:"notes,omitempty" validate:"max=2000"`
	Attachments []Attachment   `json:"attachments,omitempty"`
}

// ApplicationPatch carries the fields of an edit; nil fields are left untouched.
type ApplicationPatch struct {
	Company     *string         `json:"company,omitempty"`
	Position    *string         `json:"position,omitempty"`
	DateApplied *string         `json:"dateApplied,omitempty"`
	Type        *EmploymentType `json:"type,omitempty"`
	Status      *Status         `json:"status,omitempty"`
	Location    *string         `json:"location,omitempty"`
	Salary      *string         `json:"salary,omitempty"`
	JobSource   *string         `json:"jobSource,omitempty"`
	JobURL      *string         `json:"jobUrl,omitempty"`
	Notes       *string         `json:"notes,omitempty"`
	Attachments []Attachment    `json:"attachments,omitempty"`
}

// Attachment is a file stored inline with its parent application.
type Attachment struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Type       string    `json:"type"`
	Size       int64     `json:"size"`
	Data       string    `json:"data"` // base64
	UploadedAt time.Time `json:"uploadedAt"`
}
