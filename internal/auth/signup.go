package auth

import (
	"context"

	"github.com/applytrak/applytrak/internal/types"
	"github.com/applytrak/applytrak/internal/validation"
)

// SignupForm is the sign-up form as filled in by the user.
type SignupForm struct {
	DisplayName     string `json:"displayName" validate:"required,max=50"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8,max=72"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
	AcceptTerms     bool   `json:"acceptTerms"`
	AcceptPrivacy   bool   `json:"acceptPrivacy"`
	CloudSync       bool   `json:"cloudSync"`
	Analytics       bool   `json:"analytics"`
	Marketing       bool   `json:"marketing"`
}

// Validate returns field → message for every invalid field, or nil.
func (f SignupForm) Validate() map[string]string {
	ve := &validation.Error{}
	if err := validation.Struct(f); err != nil {
		if fields := validation.Fields(err); fields != nil {
			ve.Fields = fields
		} else {
			ve.Add("form", err.Error())
		}
	}
	if f.ConfirmPassword != "" && f.ConfirmPassword != f.Password {
		delete(ve.Fields, "confirmPassword")
		ve.Add("confirmPassword", "Passwords do not match")
	}
	if !f.AcceptTerms {
		ve.Add("acceptTerms", "You must accept the terms of service")
	}
	if !f.AcceptPrivacy {
		ve.Add("acceptPrivacy", "You must accept the privacy policy")
	}
	return ve.Fields
}

// Consents derives the consents stored at sign-up. Analytics and marketing are opt-in
// later from the privacy settings and are always false here.
func (f SignupForm) Consents() types.PrivacyConsents {
	return types.PrivacyConsents{
		Required:  f.AcceptTerms && f.AcceptPrivacy,
		CloudSync: f.CloudSync,
		Analytics: false,
		Marketing: false,
	}
}

// SubmitSignup validates the form and, when valid, signs up exactly once. Field errors are
// returned for the form to show inline; err is the provider failure, if any.
func (g *Gateway) SubmitSignup(ctx context.Context, f SignupForm) (fields map[string]string, err error) {
	if fields := f.Validate(); len(fields) > 0 {
		return fields, nil
	}
	return nil, g.SignUp(ctx, f.Email, f.Password, f.DisplayName, f.Consents())
}
