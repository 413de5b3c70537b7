// Package config loads runtime configuration for the guard process.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-d string   bank database DSN
//	-s string   session database file
//	-m string   surface: user or admin
//	-r string   site root URL
//	-i int      poll interval (seconds)
//	-l string   prompt language
//
// # JSON schema
//
// Durations are strings like "30m" or integer nanoseconds:
//
//	{
//	  "database_dsn": "postgres://bank:bank@db:5432/bank",
//	  "session_db_path": "/var/lib/bankguard/session.db",
//	  "surface": "admin",
//	  "site_root": "https://bank.example",
//	  "poll_interval": "15s",
//	  "inactivity_timeout": "30m",
//	  "hidden_grace": "10s",
//	  "max_pin_attempts": 5,
//	  "language": "de",
//	  "log_level": "debug"
//	}
//
// Timers and the PIN limit can only be changed through JSON.
package config
