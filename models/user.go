package models

import (
	"time"
)

// Role is the role of a staff account
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleReceptionist Role = "receptionist"
	RoleDoctor       Role = "doctor"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleReceptionist, RoleDoctor:
		return true
	}
	return false
}

// User represents the users table
type User struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Name         string    `json:"name" gorm:"not null"`
	Email        string    `json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"not null"`
	Role         Role      `json:"role" gorm:"type:varchar(20);not null;index"`
	DoctorID     *uint     `json:"doctorId,omitempty" gorm:"index"`
	MFAEnabled   bool      `json:"mfaEnabled" gorm:"default:false"`
	MFASecret    string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// CreateUserRequest is the body of POST /users
type CreateUserRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     Role   `json:"role" validate:"required,oneof=admin receptionist doctor"`
	DoctorID *uint  `json:"doctorId,omitempty"`
}

// LoginRequest represents the login body
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	MFACode  string `json:"mfaCode,omitempty" validate:"omitempty,len=6,numeric"`
}

// RefreshToken is a persisted refresh token
type RefreshToken struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"userId" gorm:"index;not null"`
	Token     string    `json:"token" gorm:"uniqueIndex;not null"`
	ExpiresAt time.Time `json:"expiresAt"`
	Revoked   bool      `json:"revoked" gorm:"default:false"`
	CreatedAt time.Time `json:"createdAt"`
}

// LoginResponse carries both tokens and the authenticated user
type LoginResponse struct {
	AccessToken      string `json:"accessToken"`
	RefreshToken     string `json:"refreshToken"`
	ExpiresIn        int    `json:"expiresIn"` // seconds
	RefreshExpiresIn int    `json:"refreshExpiresIn"`
	User             User   `json:"user"`
}

// RefreshRequest asks for a new token pair
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// RefreshResponse is the new token pair
type RefreshResponse struct {
	AccessToken      string `json:"accessToken"`
	RefreshToken     string `json:"refreshToken"`
	ExpiresIn        int    `json:"expiresIn"`
	RefreshExpiresIn int    `json:"refreshExpiresIn"`
}

type MFASetupRequest struct {
	Password string `json:"password" validate:"required"`
}

type MFASetupResponse struct {
	Secret    string `json:"secret"`
	QRCodeURL string `json:"qrCodeUrl"`
}

type MFAVerifyRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}
