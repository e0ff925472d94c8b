package config

// Version is the assetmig binary version.
// Set at build time via: -ldflags "-X github.com/persistorai/assetmig/internal/config.Version=<tag>"
// Defaults to "dev" when built without ldflags.
var Version = "dev"
