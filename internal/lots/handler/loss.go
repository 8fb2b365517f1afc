package handler

import (
	"net/http"
	"strconv"

	"github.com/farmaflow/farmaflow-backend/internal/lots/service"
	"github.com/farmaflow/farmaflow-backend/pkg/errors"
	"github.com/farmaflow/farmaflow-backend/pkg/httputil"
	"github.com/farmaflow/farmaflow-backend/pkg/logger"
)

// LossHandler handles the loss report
type LossHandler struct {
	service *service.LotService
	logger  *logger.Logger
}

// NewLossHandler creates a new loss handler
func NewLossHandler(svc *service.LotService, log *logger.Logger) *LossHandler {
	return &LossHandler{
		service: svc,
		logger:  log,
	}
}

// Report returns monthly losses for ?from=&to= (YYYY-MM-DD, optional).
// ?detail=true adds the expired lots behind the totals.
func (h *LossHandler) Report(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	from, err := parseDate(q.Get("from"))
	if err != nil {
		httputil.Error(w, errors.BadRequest("from must be a date formatted as 2006-01-02"))
		return
	}
	to, err := parseDate(q.Get("to"))
	if err != nil {
		httputil.Error(w, errors.BadRequest("to must be a date formatted as 2006-01-02"))
		return
	}

	detail := false
	if raw := q.Get("detail"); raw != "" {
		if detail, err = strconv.ParseBool(raw); err != nil {
			httputil.Error(w, errors.BadRequest("detail must be a boolean"))
			return
		}
	}

	report, err := h.service.LossReport(r.Context(), from, to, detail)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, toLossReportResponse(report))
}
