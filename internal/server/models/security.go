// Package models defines the server-side security records persisted by the
// security store.
package models

import (
	"slices"
	"time"
)

// Device is a client installation registered by a user.
type Device struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	AddedAt time.Time `json:"addedAt"`
}

// BuddyRequest is a pending pairing request from another user.
type BuddyRequest struct {
	From        string    `json:"from"`
	RequestedAt time.Time `json:"requestedAt"`
}

// UserSecurity is the per-user security record.
//
// TwoFactorEnabled is only ever true while TwoFactorSecret is set.
type UserSecurity struct {
	Devices          []Device       `json:"devices"`
	Buddy            string         `json:"buddy,omitempty"`
	BuddyRequests    []BuddyRequest `json:"buddyRequests"`
	FaceID           string         `json:"faceId,omitempty"`
	TwoFactorSecret  string         `json:"twoFactorSecret,omitempty"`
	TwoFactorEnabled bool           `json:"twoFactorEnabled"`
}

// NewUserSecurity returns a record with every field at its empty default.
func NewUserSecurity() *UserSecurity {
	return &UserSecurity{
		Devices:       []Device{},
		BuddyRequests: []BuddyRequest{},
	}
}

// Normalize replaces nil slices so the record always serializes with
// empty arrays, and drops an enabled flag that has no secret behind it.
func (u *UserSecurity) Normalize() {
	if u.Devices == nil {
		u.Devices = []Device{}
	}
	if u.BuddyRequests == nil {
		u.BuddyRequests = []BuddyRequest{}
	}
	if u.TwoFactorSecret == "" {
		u.TwoFactorEnabled = false
	}
}

func (u *UserSecurity) HasDevice(id string) bool {
	return slices.ContainsFunc(u.Devices, func(d Device) bool { return d.ID == id })
}

// PendingRequestIndex returns the index of the request from the given user,
// or -1.
func (u *UserSecurity) PendingRequestIndex(from string) int {
	return slices.IndexFunc(u.BuddyRequests, func(r BuddyRequest) bool { return r.From == from })
}

// Clone returns a deep copy.
func (u *UserSecurity) Clone() *UserSecurity {
	if u == nil {
		return nil
	}
	c := *u
	c.Devices = append([]Device{}, u.Devices...)
	c.BuddyRequests = append([]BuddyRequest{}, u.BuddyRequests...)
	return &c
}

// Document is the persisted layout of the whole security store.
type Document struct {
	Security map[string]*UserSecurity `json:"security"`
}

func NewDocument() *Document {
	return &Document{Security: map[string]*UserSecurity{}}
}
