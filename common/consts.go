package common

const (
	PRIVATE_CREDENTIALS_DOTENV = ".env.private"
	DEFAULT_CONFIG_DIR         = ".config/"
	DEFAULT_CONFIG_FILE        = "config.json"
	DEFAULT_PLANS_FILE         = "plans.json"

	DEFAULT_LISTEN_ADDR    = ":4000"
	DEFAULT_REDIS_ADDR     = "localhost:6379"
	DEFAULT_REDIS_PASSWORD = ""
	DEFAULT_REDIS_PREFIX   = "clinicback:"

	DEFAULT_JWT_ISSUER       = "clinicback"
	DEFAULT_JWT_EXPIRY_HOURS = 24

	DEFAULT_CURRENCY = "usd"

	// Page size bounds for list endpoints.
	DEFAULT_PAGE_LIMIT = 10
	MAX_PAGE_LIMIT     = 100

	// Bounded page size for gateway bulk syncs.
	DEFAULT_SYNC_PAGE_SIZE = 100

	// Role assumed by identities that bypass the subscription access gate.
	ROLE_SUPER_ADMIN = "super_admin"

	// Fallback system role assigned during legacy role migration.
	DEFAULT_STAFF_ROLE = "staff"
)
