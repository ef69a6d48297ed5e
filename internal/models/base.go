// Package models defines the persisted entities and transient descriptors
// audiarr works with: jobs and their audit events, cached TMDB lookups,
// probe results and audio tracks.
package models

import (
	"crypto/rand"
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

// Time aliases time.Time so models and their callers share one clock type.
type Time = time.Time

// Now returns the current time.
func Now() Time { return time.Now() }

// ULID is a lexicographically sortable unique id, stored in its 26-char
// string form. Append-only tables use it as primary key so insertion order
// survives in the key itself.
type ULID ulid.ULID

// NewULID returns a ULID stamped with the current time.
func NewULID() ULID {
	return ULID(ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader))
}

// String returns the canonical 26-character encoding.
func (u ULID) String() string { return ulid.ULID(u).String() }

// IsZero reports whether u is the zero id.
func (u ULID) IsZero() bool { return u == ULID{} }

// Value implements driver.Valuer; zero ids store as NULL.
func (u ULID) Value() (driver.Value, error) {
	if u.IsZero() {
		return nil, nil
	}
	return u.String(), nil
}

// Scan implements sql.Scanner, accepting string or []byte columns.
func (u *ULID) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*u = ULID{}
		return nil
	case string:
		return u.scanString(v)
	case []byte:
		return u.scanString(string(v))
	default:
		return fmt.Errorf("cannot scan %T into ULID", value)
	}
}

func (u *ULID) scanString(s string) error {
	if s == "" {
		*u = ULID{}
		return nil
	}
	id, err := ulid.Parse(s)
	if err != nil {
		return fmt.Errorf("scanning ULID: %w", err)
	}
	*u = ULID(id)
	return nil
}

// GormDataType tells gorm how to declare ULID columns.
func (ULID) GormDataType() string { return "varchar(26)" }

// BaseModel is embedded by append-only tables keyed by ULID.
type BaseModel struct {
	ID        ULID      `gorm:"primarykey;type:varchar(26)" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns an id when the caller did not.
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID.IsZero() {
		b.ID = NewULID()
	}
	return nil
}
