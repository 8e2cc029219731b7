// Package config loads, validates, and defaults the TOML configuration
// for overdub. CLI flags override the per-run knobs after loading.
package config
