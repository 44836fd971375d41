package constants

import "time"

const (
	PingTTL           = 30 * time.Minute
	ExpiryTaskTimeout = 5 * time.Second
)

const (
	DefaultRating      = 1000
	EloKFactor         = 32
	RecentResultsLimit = 5
)

const (
	RoleWebhookTimeout = 10 * time.Second
	DatabaseTimeout    = 5 * time.Second
	RequestTimeout     = 30 * time.Second
)

const (
	DBMaxOpenConns    = 100
	DBMaxIdleConns    = 10
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 100
)

const (
	NamespacePings   = "pings"
	NamespaceRatings = "ratings"
)
