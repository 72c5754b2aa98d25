package api

import (
	"net/http"
	"time"

	"freightgraph/internal/buildinfo"
)

// DebugJSON reports build metadata and the effective configuration, without secrets.
func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	cfg := s.App.Config()
	writeJSON(w, http.StatusOK, map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"config": map[string]any{
			"environment":       cfg.Environment,
			"port":              cfg.Server.Port,
			"cacheBackend":      cfg.Cache.Backend,
			"configPath":        cfg.Path,
			"explorer":          cfg.Explorer,
			"builder":           cfg.Builder,
			"hasAdminToken":     cfg.Server.AdminToken != "",
			"adminAuthMode":     cfg.Server.Auth.Mode,
			"webhookTargets":    len(cfg.Webhooks.URLs),
			"hasRedisBroker":    cfg.Broker.RedisURL != "",
			"hasHubDatabase":    cfg.Providers.Hubs.DatabaseURL != "",
			"seaConfigured":     cfg.Providers.Sea.BaseURL != "",
			"airConfigured":     cfg.Providers.Air.BaseURL != "",
			"emissionsProvider": cfg.Providers.Emissions.BaseURL != "",
			"delayProvider":     cfg.Providers.Delay.BaseURL != "",
		},
	})
}

func buildinfoVersion() string { return buildinfo.Info()["version"] }
