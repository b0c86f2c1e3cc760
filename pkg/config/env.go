package config

import "strings"

// Deployment environments
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// ProductionLike reports whether env enforces production configuration rules.
func ProductionLike(env string) bool {
	switch strings.ToLower(env) {
	case EnvStaging, EnvProduction:
		return true
	}
	return false
}
