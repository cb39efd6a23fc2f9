// Package config loads and validates the kitinfo configuration.
//
// # Sources
//
// Values are resolved in increasing order of precedence:
//
//  1. Built-in defaults (see Default)
//  2. A YAML file: the --config flag, $KITINFO_CONFIG, or the first of
//     $XDG_CONFIG_HOME/kitinfo/config.yaml, ~/.config/kitinfo/config.yaml and
//     ./kitinfo.yaml that exists
//  3. Environment variables named after the key, e.g. KITINFO_API_TOKEN
//  4. Command line flags bound with Loader.BindFlag
//
// # File Format
//
//	api:
//	  base_url: https://typekit.com/api/v1/json/
//	  token: "..."
//	  timeout: 30s
//	  retry_max: 2
//	session:
//	  fetch_concurrency: 4
//	  output_format: json
//	  no_color: false
//	journal:
//	  enabled: true
//	  path: ~/.local/share/kitinfo/journal.db
//	telemetry:
//	  log_level: warn
//	  log_format: console
//	  metrics:
//	    enabled: false
//	    listen_address: ""
//	    textfile: ""
//	  tracing:
//	    enabled: false
//	    exporter: stdout
//	    endpoint: ""
//	    sampling_rate: 1.0
//
// # Validation
//
// Validate checks every field with go-playground/validator. A missing token is
// reported as ErrMissingToken so the command line can point at the variable to set.
package config
