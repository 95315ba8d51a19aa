// Package config provides configuration loading, validation, and hot
// reloading for Comet.
//
// Configuration is read from a YAML file, filled in with defaults, and
// optionally overridden by COMET_* environment variables:
//
//	cfg, err := config.LoadWithEnvOverrides("comet.yaml")
//
// Every configuration problem found during validation is reported at
// once as a ValidationError, so a broken file can be fixed in a single
// pass rather than one error at a time.
//
// # Environment Variables
//
// Environment variables follow the naming convention COMET_SECTION_FIELD
// (e.g. COMET_SERVER_LISTEN_ADDRESS). Provider-scoped variables embed the
// uppercase provider name: COMET_PROVIDERS_METADB_API_KEY. Environment
// variables always take precedence over file values.
//
// # Hot Reloading
//
// Watcher reloads the file when it changes on disk:
//
//	w := config.NewWatcher("comet.yaml", 0, logger)
//	go w.Watch(ctx, func(cfg *config.Config) { apply(cfg) })
//
// A reload that fails validation is logged and dropped; the running
// configuration is never replaced with a broken one.
package config
