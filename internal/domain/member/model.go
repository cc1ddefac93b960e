package member

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// Max length constants for user-editable fields, in characters.
const (
	MaxNameLength    = 100
	MaxEmailLength   = 254
	MaxCompanyLength = 100
)

// Domain errors
var (
	ErrInvalidID       = errors.New("member id must be a positive integer")
	ErrNameRequired    = errors.New("member name cannot be empty")
	ErrNameTooLong     = errors.New("member name cannot exceed 100 characters")
	ErrEmailInvalid    = errors.New("member email must be valid")
	ErrCompanyRequired = errors.New("company name cannot be empty")
	ErrCompanyTooLong  = errors.New("company name cannot exceed 100 characters")
)

// Company is the nested company record carried by a member.
type Company struct {
	Name string `json:"name"`
}

// Member is a person record as served by the remote users endpoint.
// Identity is ID; uniqueness is owned by the remote service.
type Member struct {
	ID      int     `json:"id"`
	Name    string  `json:"name"`
	Email   string  `json:"email"`
	Company Company `json:"company"`
}

// Validate checks the constraints a native form would enforce.
// PRE: Member struct is initialized
// POST: Returns error if validation fails, nil otherwise
// INVARIANT: ID is not checked; new members carry a tentative id
func (m *Member) Validate() error {
	name := strings.TrimSpace(m.Name)
	if name == "" {
		return ErrNameRequired
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return ErrNameTooLong
	}
	email := strings.TrimSpace(m.Email)
	if utf8.RuneCountInString(email) > MaxEmailLength || !strings.Contains(email, "@") {
		return ErrEmailInvalid
	}
	company := strings.TrimSpace(m.Company.Name)
	if company == "" {
		return ErrCompanyRequired
	}
	if utf8.RuneCountInString(company) > MaxCompanyLength {
		return ErrCompanyTooLong
	}
	return nil
}

// NextID returns the tentative id for a new member: the largest known id plus one.
// Two callers reading the same set get the same answer; the remote service
// decides which create wins.
// POST: Returns 1 for an empty set
func NextID(members []Member) int {
	maxID := 0
	for _, m := range members {
		if m.ID > maxID {
			maxID = m.ID
		}
	}
	return maxID + 1
}

// Patch carries the user-editable fields of a member.
type Patch struct {
	Name        string
	Email       string
	CompanyName string
}

// Apply merges the patch into the original record.
// POST: Returned member keeps original.ID
func (p Patch) Apply(original Member) Member {
	merged := original
	merged.Name = strings.TrimSpace(p.Name)
	merged.Email = strings.TrimSpace(p.Email)
	merged.Company.Name = strings.TrimSpace(p.CompanyName)
	return merged
}

// PatchOf returns the editable fields of m, used to prefill edit forms.
func PatchOf(m Member) Patch {
	return Patch{Name: m.Name, Email: m.Email, CompanyName: m.Company.Name}
}
