package config

import "errors"

var (
	// ErrParse is returned when config.toml exists but fails to parse.
	ErrParse = errors.New("config: failed to parse config file")

	// ErrInsecurePermissions is returned when a config file is readable by
	// group or others; configs may carry bootstrap peer addresses and other
	// topology details worth keeping private.
	ErrInsecurePermissions = errors.New("config: file has overly permissive permissions")

	// ErrBadEnvValue is returned when a GOSSIP_* environment variable holds
	// a value that cannot be parsed as its field's type.
	ErrBadEnvValue = errors.New("config: invalid environment variable value")
)
