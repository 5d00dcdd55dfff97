package config

import "strings"

const defaultRevocationPrefix = "portal:revoked-session:"

// RevocationConfig controls the session deny-list.
type RevocationConfig struct {
	// Enabled turns on the deny-list. Without it Redis is never contacted.
	Enabled   bool   `env:"REVOCATION_ENABLED"    envDefault:"false"`
	KeyPrefix string `env:"REVOCATION_KEY_PREFIX" envDefault:"portal:revoked-session:"`
}

// Sanitize restores the default key prefix when blank.
func (c *RevocationConfig) Sanitize() {
	if c.KeyPrefix = strings.TrimSpace(c.KeyPrefix); c.KeyPrefix == "" {
		c.KeyPrefix = defaultRevocationPrefix
	}
}

// RedisConfig contains Redis configuration.
type RedisConfig struct {
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:""`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	ClusterNodes       []string `env:"CLUSTER_NODES"        envDefault:""`
	UseCluster         bool     `env:"USE_CLUSTER"          envDefault:"false"`
}

// Sanitize trims connection settings.
func (c *RedisConfig) Sanitize() {
	c.URI = strings.TrimSpace(c.URI)
	c.SentinelNodes = trimList(c.SentinelNodes)
	c.ClusterNodes = trimList(c.ClusterNodes)
}

func (c *RedisConfig) validate(v *validator) {
	switch {
	case c.UseCluster:
		if len(c.ClusterNodes) == 0 && c.URI == "" {
			v.missingVar("REDIS_CLUSTER_NODES")
		}
	case c.UseSentinel:
		if len(c.SentinelNodes) == 0 {
			v.missingVar("REDIS_SENTINEL_NODES")
		}
		if strings.TrimSpace(c.SentinelMasterName) == "" {
			v.missingVar("REDIS_SENTINEL_MASTER_NAME")
		}
	default:
		if c.URI == "" {
			v.missingVar("REDIS_URI")
		}
	}
}
