package auth

const (
	RoleAdmin    = "admin"
	RoleCSR      = "csr"
	RoleCustomer = "customer"
	RoleGuardian = "guardian"
)

const (
	PermDashboardRead     = "dashboard.read"
	PermConsentRead       = "consent.read"
	PermConsentWrite      = "consent.write"
	PermDSARRead          = "dsar.read"
	PermDSARSubmit        = "dsar.submit"
	PermDSARProcess       = "dsar.process"
	PermGuardianRead      = "guardian.read"
	PermGuardianConsent   = "guardian.consent"
	PermNoticesRead       = "notices.read"
	PermNoticesManage     = "notices.manage"
	PermPreferencesRead   = "preferences.read"
	PermPreferencesWrite  = "preferences.write"
	PermPreferencesManage = "preferences.manage"
	PermWebhooksManage    = "webhooks.manage"
	PermPartyRead         = "party.read"
	PermAuditRead         = "audit.read"
	PermSystemAdmin       = "admin.system"
)

var DefaultPermissions = []string{
	PermDashboardRead,
	PermConsentRead,
	PermConsentWrite,
	PermDSARRead,
	PermDSARSubmit,
	PermDSARProcess,
	PermGuardianRead,
	PermGuardianConsent,
	PermNoticesRead,
	PermNoticesManage,
	PermPreferencesRead,
	PermPreferencesWrite,
	PermPreferencesManage,
	PermWebhooksManage,
	PermPartyRead,
	PermAuditRead,
	PermSystemAdmin,
}

var RolePermissions = map[string][]string{
	RoleCustomer: {
		PermConsentRead,
		PermConsentWrite,
		PermDSARSubmit,
		PermNoticesRead,
		PermPreferencesRead,
		PermPreferencesWrite,
	},
	RoleGuardian: {
		PermConsentRead,
		PermConsentWrite,
		PermDSARSubmit,
		PermGuardianRead,
		PermGuardianConsent,
		PermNoticesRead,
		PermPreferencesRead,
		PermPreferencesWrite,
	},
	RoleCSR: {
		PermDashboardRead,
		PermConsentRead,
		PermConsentWrite,
		PermDSARRead,
		PermDSARSubmit,
		PermDSARProcess,
		PermGuardianRead,
		PermGuardianConsent,
		PermNoticesRead,
		PermPreferencesRead,
		PermPreferencesWrite,
		PermPartyRead,
	},
	RoleAdmin: DefaultPermissions,
}

// Staff roles act on behalf of other parties.
func IsStaff(role string) bool {
	return role == RoleAdmin || role == RoleCSR
}
