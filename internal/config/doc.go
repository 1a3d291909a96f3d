// Package config loads the run configuration.
//
// Values are layered: built-in defaults, then an optional TOML file, then
// environment variables, then command-line flags applied by the caller.
// Normalize replaces invalid values with their defaults and reports each
// replacement as a warning for the caller to log; invalid configuration never
// aborts a run on its own.
//
// Example TOML file:
//
//	repo_path = "."
//	extensions = ["go", ".py"]
//	max_tokens_per_batch = 300000
//	embedding_model = "text-embedding-3-large"
//	embedding_dimensions = 1536
//
//	[cache]
//	backend = "redis"
//	redis_url = "redis://localhost:6379/0"
//	ttl = "24h"
package config
