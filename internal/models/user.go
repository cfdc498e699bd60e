package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Role enum
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

// Departments a doctor can belong to.
var Departments = []string{
	"Cardiology",
	"Neurology",
	"Orthopedics",
	"Pediatrics",
	"Dermatology",
	"Gynecology",
	"Internal Medicine",
	"General Surgery",
	"Emergency Medicine",
	"Radiology",
	"Psychiatry",
	"Family Medicine",
}

// User represents a patient, doctor or administrator.
type User struct {
	BaseModel
	Email          string     `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Password       string     `gorm:"size:255;not null" json:"-"` // Never send password in JSON
	FirstName      string     `gorm:"size:50" json:"firstName"`
	LastName       string     `gorm:"size:50" json:"lastName"`
	Role           Role       `gorm:"size:20;index;not null" json:"role"`
	DateOfBirth    *time.Time `json:"dateOfBirth,omitempty"`
	PhoneNumber    string     `gorm:"size:30" json:"phoneNumber,omitempty"`
	Address        string     `gorm:"size:255" json:"address,omitempty"`
	Department     string     `gorm:"size:50;index" json:"department,omitempty"`
	Specialization string     `gorm:"size:100" json:"specialization,omitempty"`
	LicenseNumber  *string    `gorm:"size:50;uniqueIndex" json:"licenseNumber,omitempty"`
	IsActive       bool       `gorm:"default:true" json:"isActive"`
	IsVerified     bool       `gorm:"default:false" json:"isVerified"`

	// Relations (not always preloaded)
	RefreshTokens       []RefreshToken `gorm:"foreignKey:UserID" json:"-"`
	DoctorAppointments  []Appointment  `gorm:"foreignKey:DoctorID" json:"-"`
	PatientAppointments []Appointment  `gorm:"foreignKey:PatientID" json:"-"`
}

// UserSanitized represents the user data that is safe to send in API responses.
type UserSanitized struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	FirstName      string     `json:"firstName"`
	LastName       string     `json:"lastName"`
	Role           Role       `json:"role"`
	DateOfBirth    *time.Time `json:"dateOfBirth,omitempty"`
	PhoneNumber    string     `json:"phoneNumber,omitempty"`
	Address        string     `json:"address,omitempty"`
	Department     string     `json:"department,omitempty"`
	Specialization string     `json:"specialization,omitempty"`
	IsActive       bool       `json:"isActive"`
	IsVerified     bool       `json:"isVerified"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// FullName joins first and last name.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// SetPassword hashes a password and sets it on the user
func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashedPassword)
	return nil
}

// CheckPassword compares a password with the user's hashed password
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password))
	return err == nil
}

// Sanitize creates a UserSanitized struct from a User model, excluding sensitive data.
func (u *User) Sanitize() UserSanitized {
	return UserSanitized{
		ID:             u.ID,
		Email:          u.Email,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		Role:           u.Role,
		DateOfBirth:    u.DateOfBirth,
		PhoneNumber:    u.PhoneNumber,
		Address:        u.Address,
		Department:     u.Department,
		Specialization: u.Specialization,
		IsActive:       u.IsActive,
		IsVerified:     u.IsVerified,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}

// SanitizeAll maps Sanitize over a slice.
func SanitizeAll(users []User) []UserSanitized {
	out := make([]UserSanitized, len(users))
	for i := range users {
		out[i] = users[i].Sanitize()
	}
	return out
}
