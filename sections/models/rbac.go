package models

import (
	"gorm.io/gorm"
)

// Permission is a tenant-scoped capability token. Names are unique per
// tenant, not globally.
type Permission struct {
	gorm.Model
	TenantID    uint   `gorm:"not null;index:ux_tenant_permission,unique,priority:1" json:"tenantId"`
	Name        string `gorm:"size:100;not null;index:ux_tenant_permission,unique,priority:2" json:"name"`
	DisplayName string `gorm:"size:255" json:"displayName"`
	Description string `gorm:"size:500" json:"description"`
}

func (Permission) TableName() string {
	return "permissions"
}

// Role is a tenant-scoped named set of permission grants. Seeded defaults
// are marked as system roles and cannot be deleted by the tenant.
type Role struct {
	gorm.Model
	TenantID     uint         `gorm:"not null;index:ux_tenant_role,unique,priority:1" json:"tenantId"`
	Name         string       `gorm:"size:100;not null;index:ux_tenant_role,unique,priority:2" json:"name"`
	DisplayName  string       `gorm:"size:255" json:"displayName"`
	Description  string       `gorm:"size:500" json:"description"`
	IsSystemRole bool         `gorm:"default:false" json:"isSystemRole"`
	Permissions  []Permission `gorm:"many2many:role_permissions" json:"permissions,omitempty"`
}

func (Role) TableName() string {
	return "roles"
}

// RoleAudit records one role-assignment change on a user-clinic link.
type RoleAudit struct {
	gorm.Model
	TenantID     uint   `gorm:"not null;index" json:"tenantId"`
	UserClinicID uint   `gorm:"not null;index" json:"userClinicId"`
	ActorID      uint   `json:"actorId"` // zero for system-initiated changes
	Action       string `gorm:"size:50;not null" json:"action"`
	Before       string `gorm:"type:text" json:"before"`
	After        string `gorm:"type:text" json:"after"`
}

func (RoleAudit) TableName() string {
	return "role_audits"
}
