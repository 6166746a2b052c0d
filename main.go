package main

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/MohamedNourTN/clinicback/common"
	"github.com/MohamedNourTN/clinicback/db"
	"github.com/MohamedNourTN/clinicback/middleware"
	"github.com/MohamedNourTN/clinicback/sections"
	"github.com/MohamedNourTN/clinicback/sections/access"
	"github.com/MohamedNourTN/clinicback/sections/billing"
	"github.com/MohamedNourTN/clinicback/sections/common/auth"
	"github.com/MohamedNourTN/clinicback/sections/rbac"
	"github.com/MohamedNourTN/clinicback/sections/tenants"
	"github.com/MohamedNourTN/clinicback/services"
	"github.com/MohamedNourTN/clinicback/storage"
)

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// bootstrapPlans seeds the plan catalog from the config directory on first
// start. Plans already present (matched by name) are left alone.
func bootstrapPlans(ctx context.Context, cfgDir string, planSvc *billing.PlanService, store *billing.Store, defaultCurrency string) {
	seeds, err := common.LoadPlanSeeds(cfgDir)
	if err != nil {
		slog.Warn("No plan seed catalog loaded", "error", err)
		return
	}

	existing, err := store.ListPlans(ctx, true)
	if err != nil {
		slog.Error("Failed to list plans for bootstrap", "error", err)
		return
	}
	known := make(map[string]bool, len(existing))
	for _, plan := range existing {
		known[plan.Name] = true
	}

	for _, seed := range seeds {
		if known[seed.Name] {
			continue
		}
		_, err := planSvc.CreatePlan(ctx, billing.CreatePlanInput{
			Name:            seed.Name,
			Description:     seed.Description,
			PriceCents:      seed.PriceCents,
			Currency:        seed.Currency,
			Interval:        seed.Interval,
			IntervalCount:   seed.IntervalCount,
			TrialPeriodDays: seed.TrialPeriodDays,
			MaxClinics:      seed.MaxClinics,
			MaxUsers:        seed.MaxUsers,
			MaxPatients:     seed.MaxPatients,
			Features:        seed.Features,
			IsDefault:       seed.IsDefault,
		}, defaultCurrency)
		if err != nil {
			slog.Error("Failed to bootstrap plan", "plan", seed.Name, "error", err)
			continue
		}
		slog.Info("Bootstrapped plan", "plan", seed.Name)
	}
}

func main() {
	ctx := context.Background()

	// Set up structured logging with debug level
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})))

	// Load environment variables
	if _, err := os.Stat(common.PRIVATE_CREDENTIALS_DOTENV); err == nil {
		if err := godotenv.Load(common.PRIVATE_CREDENTIALS_DOTENV); err != nil {
			slog.Error("Failed to load .env.private file", "error", err)
			os.Exit(1)
		}
	}

	cfgDir := getEnv("CONFIG_DIR", common.DEFAULT_CONFIG_DIR)

	// Load configuration

	cfg, err := common.LoadConfig(cfgDir)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// Connect to the database and migrate the schema
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		slog.Error("Failed to migrate database", "error", err)
		os.Exit(1)
	}

	// Initialize Redis client and lock manager (optional; creation races
	// fall back to the database's partial unique index without it)
	var redisClient *storage.RedisClient
	var locks *storage.LockManager
	if cfg.RedisAddr != "" {
		redisClient, err = storage.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisPrefix, 0)
		if err != nil {
			slog.Error("Failed to initialize Redis client", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		locks = storage.NewLockManager(redisClient)
	} else {
		slog.Warn("No Redis address configured, subscription creation locking disabled")
	}

	// Initialize JWT manager
	jwtManager, err := auth.NewJWTManager(cfg.JWTPrivateKey, cfg.JWTIssuer, cfg.JWTExpiryHours)
	if err != nil {
		slog.Error("Failed to initialize JWT manager", "error", err)
		os.Exit(1)
	}

	// Initialize Stripe gateway and billing services
	if cfg.StripeSecretKey == "" {
		slog.Error("Stripe secret key is required")
		os.Exit(1)
	}
	gateway := services.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookSecret)

	store := billing.NewStore(database.DB)
	engine := billing.NewEngine(store, gateway, locks)
	planSvc := billing.NewPlanService(store, gateway)
	processor := billing.NewWebhookProcessor(store, gateway)
	provisioner := rbac.NewProvisioner(database.DB)
	migrator := rbac.NewMigrator(database.DB)

	deps := sections.NewDependencies(cfg, database, redisClient, locks)

	bootstrapPlans(ctx, cfgDir, planSvc, store, cfg.DefaultCurrency)

	adminAuth := middleware.APIKeyAuthMiddleware(
		middleware.StaticKeyValidator(cfg.AdminAPIKey, cfg.AdminAPISecret))

	// Initialize Gin router
	r := gin.Default()

	env := getEnv("APP_ENV", "production")
	trustedProxies := getEnv("TRUSTED_PROXIES", "")
	corsOrigins := getEnv("CORS_ORIGINS", "")

	if env != "development" && trustedProxies == "" {
		slog.Error("In production mode, TRUSTED_PROXIES must be set")
		os.Exit(1)
	} else if trustedProxies != "" {
		slog.Info("Setting trusted proxies", "proxies", trustedProxies)
		proxies := strings.Split(trustedProxies, ",")
		if err := r.SetTrustedProxies(proxies); err != nil {
			slog.Error("Failed to set trusted proxies", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Warn("No trusted proxies set (TRUSTED_PROXIES not defined)")
	}

	// Configure CORS
	corsConfig := cors.DefaultConfig()

	if env != "development" && corsOrigins == "" {
		slog.Error("In production mode, CORS_ORIGINS must be set")
		os.Exit(1)
	} else if corsOrigins != "" {
		slog.Info("CORS origins set from CORS_ORIGINS")
		corsConfig.AllowOrigins = strings.Split(corsOrigins, ",")
	} else {
		slog.Warn("Using default origin function in non-production mode (CORS_ORIGINS not defined)")
		corsConfig.AllowOriginFunc = func(origin string) bool {
			if origin == "http://localhost" || strings.HasPrefix(origin, "http://localhost:") {
				return true
			}
			return false
		}
	}

	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	r.Use(cors.New(corsConfig))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Frontend routes carry CORS; callback routes are hit by the gateway
	frontendRoutes := r.Group("")
	callbackRoutes := r.Group("/callbacks")

	gate := access.NewGate(store, nil)

	billing.RegisterRoutes(frontendRoutes, callbackRoutes, deps, jwtManager, adminAuth, engine, planSvc, processor, store)
	access.RegisterRoutes(frontendRoutes, deps, jwtManager, gate)
	rbac.RegisterRoutes(frontendRoutes, deps, adminAuth, provisioner, migrator)
	tenants.RegisterRoutes(frontendRoutes, deps, adminAuth, provisioner)

	slog.Info("Server starting", "addr", cfg.ListenAddr)
	if err := r.Run(cfg.ListenAddr); err != nil {
		slog.Error("Failed to start server", "error", err)
		os.Exit(1)
	}
}
