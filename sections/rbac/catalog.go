package rbac

// PermissionTemplate is one entry of the default permission catalog seeded
// into every tenant.
type PermissionTemplate struct {
	Name        string
	DisplayName string
	Description string
}

// RoleTemplate is one entry of the default role catalog. Permissions lists
// catalog permission names granted to the role.
type RoleTemplate struct {
	Name        string
	DisplayName string
	Description string
	Permissions []string
}

// DefaultPermissions is the fixed per-tenant permission catalog. Names are
// unique within a tenant, not globally.
var DefaultPermissions = []PermissionTemplate{
	{Name: "patients.read", DisplayName: "View patients", Description: "View patient records and history"},
	{Name: "patients.write", DisplayName: "Manage patients", Description: "Create and update patient records"},
	{Name: "appointments.read", DisplayName: "View appointments", Description: "View the appointment calendar"},
	{Name: "appointments.write", DisplayName: "Manage appointments", Description: "Book, move and cancel appointments"},
	{Name: "billing.read", DisplayName: "View billing", Description: "View invoices and payment history"},
	{Name: "billing.write", DisplayName: "Manage billing", Description: "Issue invoices and record payments"},
	{Name: "staff.read", DisplayName: "View staff", Description: "View staff members and their roles"},
	{Name: "staff.write", DisplayName: "Manage staff", Description: "Invite staff and assign roles"},
	{Name: "clinics.write", DisplayName: "Manage clinics", Description: "Create and configure clinic locations"},
	{Name: "reports.read", DisplayName: "View reports", Description: "View operational and financial reports"},
}

// DefaultRoles is the fixed per-tenant role catalog. All seeded roles are
// system roles; "staff" doubles as the fallback for legacy role migration.
var DefaultRoles = []RoleTemplate{
	{
		Name:        "admin",
		DisplayName: "Administrator",
		Description: "Full access to all tenant features",
		Permissions: []string{
			"patients.read", "patients.write",
			"appointments.read", "appointments.write",
			"billing.read", "billing.write",
			"staff.read", "staff.write",
			"clinics.write", "reports.read",
		},
	},
	{
		Name:        "doctor",
		DisplayName: "Doctor",
		Description: "Clinical access to patients and appointments",
		Permissions: []string{
			"patients.read", "patients.write",
			"appointments.read", "appointments.write",
			"reports.read",
		},
	},
	{
		Name:        "receptionist",
		DisplayName: "Receptionist",
		Description: "Front-desk scheduling and billing access",
		Permissions: []string{
			"patients.read",
			"appointments.read", "appointments.write",
			"billing.read",
		},
	},
	{
		Name:        "staff",
		DisplayName: "Staff",
		Description: "Baseline access for clinic staff",
		Permissions: []string{
			"patients.read",
			"appointments.read",
		},
	},
}
