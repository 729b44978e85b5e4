// internal/adapters/in/http/handlers/config_handler.go
package handlers

import "net/http"

// PublicConfig is the claim configuration a client may see.
type PublicConfig struct {
	Mint                  string `json:"mint"`
	Decimals              uint8  `json:"decimals"`
	ClaimAmount           uint64 `json:"claimAmount"`
	Treasury              string `json:"treasury,omitempty"`
	PriceLamportsPerToken uint64 `json:"priceLamportsPerToken,omitempty"`
	Cluster               string `json:"cluster,omitempty"`
	Configured            bool   `json:"configured"`
}

// NewConfigHandler serves GET /config.
func NewConfigHandler(cfg PublicConfig) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=60")
		writeJSON(w, http.StatusOK, cfg)
	})
}
