package handler

import (
	"net/http"

	"github.com/pharmacy/pharmacy-backend/internal/pharmacy/service"
	"github.com/pharmacy/pharmacy-backend/pkg/httputil"
	"github.com/pharmacy/pharmacy-backend/pkg/logger"
)

// InventoryHandler exposes the low-stock check
type InventoryHandler struct {
	watchdog *service.InventoryWatchdog
	logger   *logger.Logger
}

// NewInventoryHandler creates a new inventory handler
func NewInventoryHandler(watchdog *service.InventoryWatchdog, log *logger.Logger) *InventoryHandler {
	return &InventoryHandler{
		watchdog: watchdog,
		logger:   log,
	}
}

// RunCheck runs one inventory check cycle and returns its summary.
// A run that lost the lock to another instance still answers 200.
func (h *InventoryHandler) RunCheck(w http.ResponseWriter, r *http.Request) {
	result := h.watchdog.RunCheck(r.Context())
	h.logger.Ctx(r.Context()).Info().Str("state", string(result.State)).Msg("inventory check triggered manually")
	httputil.JSON(w, http.StatusOK, result)
}
