package models

import (
	"fmt"
	"time"
)

// GenderRestriction constrains which students may occupy a room.
type GenderRestriction string

const (
	RestrictionMenOnly   GenderRestriction = "MEN_ONLY"
	RestrictionWomenOnly GenderRestriction = "WOMEN_ONLY"
	RestrictionMixed     GenderRestriction = "MIXED"
)

// RestrictionForGender maps a student gender to the room restriction category
// it satisfies. Any other gender value is a data error.
func RestrictionForGender(g Gender) (GenderRestriction, error) {
	switch g {
	case GenderMale:
		return RestrictionMenOnly, nil
	case GenderFemale:
		return RestrictionWomenOnly, nil
	default:
		return "", fmt.Errorf("invalid gender %q", g)
	}
}

// RoomStatus values for the rooms table.
type RoomStatus string

const (
	RoomStatusAvailable   RoomStatus = "AVAILABLE"
	RoomStatusMaintenance RoomStatus = "MAINTENANCE"
	RoomStatusClosed      RoomStatus = "CLOSED"
)

// Room is a physical housing unit. Occupants and Reserved are the contended
// counters mutated by the assignment engine; occupants + reserved <= capacity
// must hold at all times.
type Room struct {
	ID                string            `db:"id" json:"id"`
	TenantID          string            `db:"tenant_id" json:"tenant_id"`
	FacilityName      string            `db:"facility_name" json:"facility_name"`
	Number            string            `db:"number" json:"number"`
	RoomType          string            `db:"room_type" json:"room_type"`
	Capacity          int               `db:"capacity" json:"capacity"`
	Occupants         int               `db:"occupants" json:"occupants"`
	Reserved          int               `db:"reserved" json:"reserved"`
	GenderRestriction GenderRestriction `db:"gender_restriction" json:"gender_restriction"`
	Status            RoomStatus        `db:"status" json:"status"`
	Active            bool              `db:"active" json:"active"`
	CreatedAt         time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time         `db:"updated_at" json:"updated_at"`
}

// FreeCapacity returns the number of beds neither occupied nor reserved.
func (r *Room) FreeCapacity() int {
	return r.Capacity - r.Occupants - r.Reserved
}

// Accepts reports whether the room's restriction admits the given category.
func (r *Room) Accepts(category GenderRestriction) bool {
	return r.GenderRestriction == RestrictionMixed || r.GenderRestriction == category
}

// RoomFilter encapsulates allowed search parameters for listing rooms.
type RoomFilter struct {
	FacilityName string
	RoomType     string
	Status       RoomStatus
	Restriction  GenderRestriction
	Active       *bool
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}

// RoomSearchCriteria narrows the candidate set for an assignment attempt.
// Zero-value fields are not applied.
type RoomSearchCriteria struct {
	Category       GenderRestriction
	PreferredTypes []string
}
