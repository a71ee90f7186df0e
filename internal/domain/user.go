// Package domain contains core business types and interfaces.
//
// This file defines the member types shared by the membership and
// fulfillment collaborators. They are decoupled from the repository models
// so the quota logic never sees sql.Null* values.
package domain

import (
	"database/sql"
	"strings"
	"time"
)

// MembershipStatus represents the possible states of a member's subscription.
type MembershipStatus string

const (
	MembershipStatusPending   MembershipStatus = "pending"
	MembershipStatusActive    MembershipStatus = "active"
	MembershipStatusCancelled MembershipStatus = "cancelled"
	MembershipStatusExpired   MembershipStatus = "expired"
	MembershipStatusFree      MembershipStatus = "free"
)

// User is an authenticated member of the store.
//
// Handlers pass *User explicitly into services; a nil *User means the
// request is anonymous.
type User struct {
	ID        int64
	Email     string
	FirstName string
	LastName  string
	CreatedAt time.Time
}

// DisplayName returns the member's full name or email if no name is set.
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name != "" {
		return name
	}
	return u.Email
}

// BuyerInfo returns the identity copied onto orders created for this member.
func (u *User) BuyerInfo() UserInfo {
	return UserInfo{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

// UserID returns the member's ID, or 0 for an anonymous request.
func UserID(u *User) int64 {
	if u == nil {
		return 0
	}
	return u.ID
}

// SubscriptionLevel is a membership tier configured by an administrator.
type SubscriptionLevel struct {
	ID   int64
	Name string
}

// Membership ties a member to a subscription level.
type Membership struct {
	UserID    int64
	LevelID   int64
	Status    MembershipStatus
	ExpiresAt *time.Time
}

// IsActive returns true if the membership grants access right now.
// Expired rows with a stale status are treated as inactive.
func (m *Membership) IsActive(now time.Time) bool {
	if m.Status != MembershipStatusActive && m.Status != MembershipStatusFree {
		return false
	}
	if m.ExpiresAt != nil && now.After(*m.ExpiresAt) {
		return false
	}
	return true
}

// =============================================================================
// Conversion helpers from repository types
// =============================================================================

// NullStringValue safely extracts a string from sql.NullString.
func NullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// NullTimeValue safely extracts a time pointer from sql.NullTime.
func NullTimeValue(nt sql.NullTime) *time.Time {
	if nt.Valid {
		return &nt.Time
	}
	return nil
}

// ToNullString converts a string to sql.NullString.
func ToNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}
