package handlers

import (
	"net/http"

	"github.com/ahmedsayed1911/FindMe-With-Ai-Search-Tool/internal/config"
)

// ConfigHandler handles configuration endpoints
type ConfigHandler struct {
	config    *config.Config
	extractor string
}

// NewConfigHandler creates a new config handler. extractor names the
// embedding backend chosen at startup.
func NewConfigHandler(cfg *config.Config, extractor string) *ConfigHandler {
	return &ConfigHandler{
		config:    cfg,
		extractor: extractor,
	}
}

// ConfigResponse represents the configuration response
type ConfigResponse struct {
	Matching     config.MatchingConfig `json:"matching"`
	StoreBackend string                `json:"store_backend"`
	IndexBackend string                `json:"index_backend"`
	BlobBackend  string                `json:"blob_backend"`
	Extractor    string                `json:"extractor"`
}

// Get returns the active configuration without secrets
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, ConfigResponse{
		Matching:     h.config.Matching,
		StoreBackend: h.config.Store.Backend,
		IndexBackend: h.config.Index.Backend,
		BlobBackend:  h.config.Blob.Backend,
		Extractor:    h.extractor,
	})
}
