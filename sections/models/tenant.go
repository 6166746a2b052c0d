package models

import (
	"time"

	"gorm.io/gorm"
)

// Tenant represents an isolated clinic organization, the unit of billing and
// permission scoping.
type Tenant struct {
	gorm.Model
	Name         string `gorm:"size:255;not null" json:"name"`
	DisplayName  string `gorm:"size:255" json:"displayName"`
	ContactEmail string `gorm:"size:255" json:"contactEmail"`
	Active       bool   `json:"active"`
}

func (Tenant) TableName() string {
	return "tenants"
}

// Clinic is a physical location belonging to a tenant.
type Clinic struct {
	gorm.Model
	TenantID uint   `gorm:"not null;index" json:"tenantId"`
	Name     string `gorm:"size:255;not null" json:"name"`
	Address  string `gorm:"type:text" json:"address"`
	Phone    string `gorm:"size:50" json:"phone"`
	Active   bool   `json:"active"`

	Tenant Tenant `gorm:"foreignKey:TenantID" json:"-"`
}

func (Clinic) TableName() string {
	return "clinics"
}

// User represents a platform user.
type User struct {
	gorm.Model
	Email         string     `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash  string     `gorm:"size:255" json:"-"`
	FirstName     string     `gorm:"size:100" json:"firstName"`
	LastName      string     `gorm:"size:100" json:"lastName"`
	Role          string     `gorm:"size:50" json:"role"` // platform role, e.g. super_admin
	EmailVerified bool       `gorm:"default:false" json:"emailVerified"`
	LastLoginAt   *time.Time `json:"lastLoginAt,omitempty"`
	Active        bool       `json:"active"`
}

func (User) TableName() string {
	return "users"
}

// UserClinic links a user to a clinic. LegacyRole is the pre-migration
// single-role field; Roles is the current per-tenant many-role assignment.
type UserClinic struct {
	gorm.Model
	UserID   uint `gorm:"not null;index:ux_user_clinic,unique,priority:1" json:"userId"`
	ClinicID uint `gorm:"not null;index:ux_user_clinic,unique,priority:2" json:"clinicId"`

	LegacyRole    string `gorm:"size:50" json:"-"`
	PrimaryRoleID *uint  `gorm:"index" json:"primaryRoleId,omitempty"`
	Roles         []Role `gorm:"many2many:user_clinic_roles" json:"roles,omitempty"`

	User   User   `gorm:"foreignKey:UserID" json:"-"`
	Clinic Clinic `gorm:"foreignKey:ClinicID" json:"-"`
}

func (UserClinic) TableName() string {
	return "user_clinics"
}
