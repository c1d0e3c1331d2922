package client

import (
	"fmt"

	"github.com/habedi/dogs/pkg/validation"
)

// TokenPair is the access/refresh credential pair issued by the identity provider.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Validate rejects pairs with a missing token.
func (p TokenPair) Validate() error {
	if err := validation.ValidateNonEmptyString("accessToken", p.AccessToken); err != nil {
		return err
	}
	return validation.ValidateNonEmptyString("refreshToken", p.RefreshToken)
}

// UserProfile is the authenticated user's identity. It is replaced wholesale, never patched.
type UserProfile struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Gender    string `json:"gender"`
	Image     string `json:"image"`
}

func (u UserProfile) Validate() error {
	if err := validation.ValidateUserID(u.ID); err != nil {
		return err
	}
	return validation.ValidateNonEmptyString("username", u.Username)
}

type LoginRequest struct {
	Username      string `json:"username"`
	Password      string `json:"password"`
	ExpiresInMins int    `json:"expiresInMins,omitempty"`
}

func (r LoginRequest) Validate() error {
	if err := validation.ValidateNonEmptyString("username", r.Username); err != nil {
		return err
	}
	return validation.ValidateNonEmptyString("password", r.Password)
}

// LoginResponse is a TokenPair and a UserProfile flattened into one JSON object.
type LoginResponse struct {
	TokenPair
	UserProfile
}

func (r LoginResponse) Validate() error {
	if err := r.TokenPair.Validate(); err != nil {
		return fmt.Errorf("invalid tokens: %w", err)
	}
	if err := r.UserProfile.Validate(); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}
	return nil
}

type RefreshRequest struct {
	RefreshToken  string `json:"refreshToken"`
	ExpiresInMins int    `json:"expiresInMins,omitempty"`
}

// Breed is one entry of the proxy's breed listing.
type Breed struct {
	Name string `json:"name"`
}

type BreedList struct {
	Breeds []Breed `json:"breeds"`
}

type BreedImages struct {
	Breed  string   `json:"breed"`
	Images []string `json:"images"`
}
