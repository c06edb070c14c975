package types

import (
	"github.com/go-playground/validator/v10"
)

// FlagsUpdateRequest is the body of PATCH /postings/{fingerprint}/flags.
// Nil fields are left unchanged.
type FlagsUpdateRequest struct {
	Hidden     *bool   `json:"hidden,omitempty"`
	Bookmarked *bool   `json:"bookmarked,omitempty"`
	Notes      *string `json:"notes,omitempty" validate:"omitempty,max=4000"`
}

// Empty reports whether the request changes nothing.
func (r *FlagsUpdateRequest) Empty() bool {
	return r.Hidden == nil && r.Bookmarked == nil && r.Notes == nil
}

// TokenRequest asks for an API token for the named subject.
type TokenRequest struct {
	Subject string `json:"subject" validate:"required,min=1,max=128"`
	Hours   int    `json:"hours,omitempty" validate:"gte=0,lte=8760"`
}

// Validate validates the FlagsUpdateRequest using the validator.
func (r *FlagsUpdateRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// Validate validates the TokenRequest using the validator.
func (r *TokenRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}
