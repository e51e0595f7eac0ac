package model

import "time"

// IssueStatus is the resolution state of an external issue record.
// The wider procurement backend owns these rows; this core only reads
// them and writes the status and AI-activation flag back.
type IssueStatus string

const (
	IssueOpen          IssueStatus = "open"
	IssueAIResolving   IssueStatus = "ai_resolving"
	IssuePendingVendor IssueStatus = "pending_vendor_response"
	IssueResolved      IssueStatus = "resolved"
)

// Issue is the slice of the external issue record this core consumes:
// enough context to address the vendor and describe the problem.
type Issue struct {
	// ID is the issue's opaque unique identifier (canonical UUID string).
	ID string `json:"id" db:"id"`

	// VendorName is the vendor contact's display name. Drafts address
	// the vendor by this name, never a generic placeholder.
	VendorName string `json:"vendor_name" db:"vendor_name"`

	// VendorEmail is the vendor contact address for this issue.
	VendorEmail string `json:"vendor_email" db:"vendor_email"`

	// IssueType is the human-readable category (e.g. "damaged product").
	IssueType string `json:"issue_type" db:"issue_type"`

	// Description is the problem report text.
	Description string `json:"description" db:"description"`

	// Status is the current resolution state.
	Status IssueStatus `json:"status" db:"status"`

	// AIActivated is set once an AI conversation has been opened.
	AIActivated bool `json:"ai_activated" db:"ai_activated"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
