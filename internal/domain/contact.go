package domain

import "time"

// Contact is a person reachable by email. Email, Name, Company and Tags are
// encrypted envelopes at rest; EmailHash is the keyed lookup hash of the
// normalized address and is the uniqueness key.
type Contact struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	EmailHash string    `json:"-"`
	Name      *string   `json:"name"`
	Company   *string   `json:"company"`
	Tags      *string   `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Groups []GroupRef `json:"groups"`
}

// GroupRef names a group a contact belongs to.
type GroupRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ContactGroup is a named segment of contacts.
type ContactGroup struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	MemberCount int       `json:"member_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Membership joins a contact to a group. Unique per pair.
type Membership struct {
	ContactID string    `json:"contact_id"`
	GroupID   string    `json:"group_id"`
	CreatedAt time.Time `json:"created_at"`

	// Loaded alongside the membership for dispatch.
	Contact *Contact `json:"contact,omitempty"`
}

// GroupDeleteMode selects what happens to members when a group is deleted.
type GroupDeleteMode string

const (
	GroupDeleteMembers       GroupDeleteMode = "delete-members"
	GroupMoveToDefault       GroupDeleteMode = "move-to-default"
	DefaultGroupName                         = "Default Group"
	DefaultGroupFallbackName                 = "Default Group (Auto)"
	DefaultGroupDescription                  = "Auto-created fallback group"
)

// NormalizeGroupDeleteMode maps anything but delete-members to move-to-default.
func NormalizeGroupDeleteMode(mode string) GroupDeleteMode {
	if GroupDeleteMode(mode) == GroupDeleteMembers {
		return GroupDeleteMembers
	}
	return GroupMoveToDefault
}

// EmailTemplate is a reusable subject/HTML/design-state triple.
type EmailTemplate struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Subject     string    `json:"subject"`
	HTML        string    `json:"html"`
	DesignJSON  *string   `json:"design_json"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
