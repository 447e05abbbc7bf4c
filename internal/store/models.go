package store

import (
	"encoding/json"
	"time"
)

type User struct {
	ID                    int64
	Name                  string
	Email                 string
	PasswordHash          string
	Role                  string
	TenantID              int64
	IsEmailVerified       bool
	VerificationToken     string
	VerificationExpiresAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// ContentNode is one row of the hierarchical content table: top-level
// content, a comment, or a reaction, distinguished by its content type.
// Title doubles as the display/body text for comments and reactions.
// Metadata is the open payload whose shape is fixed by the content type's
// family plus the embedded "kind" discriminator.
type ContentNode struct {
	ID            int64
	Title         string
	AuthorID      int64
	ContentTypeID int64
	ParentID      *int64
	AccessType    string
	TenantID      int64
	Metadata      json.RawMessage
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ContentNodePatch carries the attributes an update mutation supplies.
// Nil fields are left untouched.
type ContentNodePatch struct {
	Title         *string
	AuthorID      *int64
	ContentTypeID *int64
	ParentID      *int64
	ClearParent   bool
	AccessType    *string
	TenantID      *int64
	Metadata      json.RawMessage
}

// ContentType is a row of the content type catalog. Family selects the
// metadata variant set (video, music, press, merch, comment, reaction).
type ContentType struct {
	ID        int64
	Name      string
	Family    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ContentAccess grants an access rule to exactly one content node. Rows are
// deleted explicitly before their owning node is removed; there is no
// database-level cascade.
type ContentAccess struct {
	ID        int64
	ContentID int64
	Rule      string
	GrantedAt time.Time
}
