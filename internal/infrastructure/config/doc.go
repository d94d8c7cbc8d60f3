// Package config loads and validates Roomwatch Core configuration.
//
// Configuration comes from a YAML file with hardcoded defaults underneath
// and ROOMWATCH_* environment variables on top, so credentials never have to
// live on disk. Validate rejects configurations that would start a broken
// deployment, such as a missing JWT secret or an unknown agent auth method.
package config
