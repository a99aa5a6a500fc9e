package config

import "os"

// ExpandEnv expands environment variables in YAML content using Go's
// standard library. Supports both ${VAR} and $VAR syntax.
//
// Examples:
//   - ${DATABASE_PASSWORD} → value of DATABASE_PASSWORD
//   - ${REDIS_ADDR}:${REDIS_PORT} → hostname:port, both expanded
//
// Missing variables expand to empty string; Validate catches required
// fields left empty by a missing variable.
func ExpandEnv(data []byte) []byte {
	return []byte(os.ExpandEnv(string(data)))
}
