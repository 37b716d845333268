package domain

import (
	"strconv"
	"time"
)

type Property struct {
	ID          int64
	Name        string
	Slug        string
	Address     string
	LocationURL string
	Phone       string
	Email       string
	CreatedAt   time.Time
}

type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// HouseRules is the rich-text policy document shown to guests. There is at
// most one per property.
type HouseRules struct {
	ID         int64
	PropertyID int64
	Title      string
	Content    string
	Version    int
	UpdatedAt  time.Time
	UpdatedBy  *int64
}

type Guest struct {
	ID         int64
	PropertyID int64
	Name       string
}

type Stay struct {
	ID            int64
	PropertyID    int64
	GuestCount    int
	CheckInDate   time.Time
	CheckOutDate  *time.Time
	PhoneNumber   string
	Email         string
	ComingFrom    string
	TermsAgreed   bool
	TermsAgreedAt *time.Time
	FormFilled    bool
	FormFilledAt  *time.Time
	Notes         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CreatedBy     *int64
}

// StayDetails is a stay with its linked guests, documents and booking code.
type StayDetails struct {
	*Stay
	Guests    []*Guest
	Documents []*Document
	Code      *BookingCode
}

// GuestNames joins up to three guest names for list rendering.
func (d *StayDetails) GuestNames() string {
	names := ""
	for i, g := range d.Guests {
		if i == 3 {
			names += " (+" + strconv.Itoa(len(d.Guests)-3) + " more)"
			break
		}
		if i > 0 {
			names += ", "
		}
		names += g.Name
	}
	return names
}

type DocumentType string

const (
	DocumentAadhaar        DocumentType = "aadhaar"
	DocumentPassport       DocumentType = "passport"
	DocumentDrivingLicense DocumentType = "driving_license"
	DocumentVoterID        DocumentType = "voter_id"
	DocumentOther          DocumentType = "other"
)

// DocumentTypes lists the accepted document types in display order.
var DocumentTypes = []DocumentType{
	DocumentAadhaar,
	DocumentPassport,
	DocumentDrivingLicense,
	DocumentVoterID,
	DocumentOther,
}

func (t DocumentType) Valid() bool {
	for _, known := range DocumentTypes {
		if t == known {
			return true
		}
	}
	return false
}

func (t DocumentType) Label() string {
	switch t {
	case DocumentAadhaar:
		return "Aadhaar Card"
	case DocumentPassport:
		return "Passport"
	case DocumentDrivingLicense:
		return "Driving License"
	case DocumentVoterID:
		return "Voter ID"
	default:
		return "Other ID"
	}
}

type Document struct {
	ID           int64
	PropertyID   int64
	Name         string
	DocumentType DocumentType
	StorageKey   string
	MimeType     string
	SizeBytes    int64
	UploadedAt   time.Time
	UploadedBy   *int64
	Notes        string
}

type BookingCode struct {
	ID            int64
	Code          string
	StayID        int64
	CreatedAt     time.Time
	ExpiresAt     *time.Time
	AccessedCount int64
	LastAccessed  *time.Time
}

// Expired reports whether the code is no longer usable at now.
func (c *BookingCode) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}

// URL returns the public path for the code.
func (c *BookingCode) URL() string {
	return "/b/" + c.Code + "/"
}

// GuestSubmission is what a guest sends through the public form.
type GuestSubmission struct {
	GuestNames  []string
	GuestCount  int
	PhoneNumber string
	Email       string
	ComingFrom  string
	TermsAgreed bool
}
