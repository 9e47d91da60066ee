package handlers

import (
	"github.com/gin-gonic/gin"

	"purchasing/internal/domain/reconcile"
)

// ReconcileHandler exposes an on-demand ledger/projection comparison.
type ReconcileHandler struct {
	*BaseHandler
	service *reconcile.Service
}

// NewReconcileHandler creates a new reconciliation handler.
func NewReconcileHandler(base *BaseHandler, service *reconcile.Service) *ReconcileHandler {
	return &ReconcileHandler{BaseHandler: base, service: service}
}

// Run handles GET /reconciliation.
func (h *ReconcileHandler) Run(c *gin.Context) {
	report, err := h.service.Run(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{
		"clean":  report.Clean(),
		"report": report,
	})
}
