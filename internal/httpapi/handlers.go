package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"hazelinvoice/backend/internal/domain"
	"hazelinvoice/backend/internal/report"
	"hazelinvoice/backend/internal/service"
)

func (a *API) handleMatrix(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		query := r.URL.Query()
		q := domain.MatrixQuery{
			Date:        query.Get("date"),
			Page:        parsePositiveLimit(query.Get("page"), 1, 0),
			ProductPage: parsePositiveLimit(query.Get("product_page"), 1, 0),
			Print:       parseFlag(query.Get("print")),
		}
		view, err := a.service.GetMatrix(r.Context(), q)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	case http.MethodPost:
		var req domain.MatrixSaveRequest
		if !a.bind(w, r, &req) {
			return
		}
		result, err := a.service.SaveMatrix(r.Context(), req)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleMatrixExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	view, err := a.service.ExportView(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	f, filename, err := report.MatrixWorkbook(view)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	if err := f.Write(w); err != nil {
		a.logger.WithField("request_id", requestIDFrom(r.Context())).WithError(err).Warn("failed to stream matrix export")
	}
}

func (a *API) handleOutletOrders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		query := r.URL.Query()
		outletID, err := parseOptionalInt64(query.Get("outlet_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		view, err := a.service.GetOutletOrder(r.Context(), domain.OutletOrderQuery{
			Date:       query.Get("date"),
			OutletID:   outletID,
			AllOutlets: parseFlag(query.Get("all_outlets")),
		})
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	case http.MethodPost:
		var req domain.OutletOrderSaveRequest
		if !a.bind(w, r, &req) {
			return
		}
		result, err := a.service.SaveOutletOrder(r.Context(), req)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handlePriceVersus(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		view, err := a.service.GetPriceVersus(r.Context(), r.URL.Query().Get("date"))
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	case http.MethodPost:
		var req domain.PriceVersusSaveRequest
		if !a.bind(w, r, &req) {
			return
		}
		result, err := a.service.SavePriceVersus(r.Context(), req)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleCloneLastWeek(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	result, err := a.service.CloneLastWeek(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleResolvePrice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	query := r.URL.Query()
	productID, err := parseOptionalInt64(query.Get("product_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	price, err := a.service.ResolvePrice(r.Context(), productID, query.Get("date"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, price)
}

func (a *API) handleReceipts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	query := r.URL.Query()
	list, err := a.service.ListReceiptsByStatus(r.Context(), query.Get("date"), query.Get("status"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleReceiptActions serves /api/v1/receipts/{id}, {id}/mark-paid and
// {id}/void.
func (a *API) handleReceiptActions(w http.ResponseWriter, r *http.Request) {
	id, action, err := splitActionPath(r.URL.Path, "/api/v1/receipts/")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	switch action {
	case "":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		receipt, err := a.service.GetReceipt(r.Context(), id)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, receipt)
	case "mark-paid":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		receipt, err := a.service.MarkReceiptPaid(r.Context(), id)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, receipt)
	case "void":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		a.voidReceipt(w, r, id)
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown receipt action"))
	}
}

func (a *API) voidReceipt(w http.ResponseWriter, r *http.Request, id int64) {
	actor, ok := service.ActorFromContext(r.Context())
	if !ok || actor.Role != domain.RoleAdmin {
		writeError(w, http.StatusForbidden, errors.New("forbidden role"))
		return
	}

	var req domain.VoidReceiptRequest
	if !a.bind(w, r, &req) {
		return
	}
	if !a.pinLimiter.Allow("pin:void:" + clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many manager pin attempts"))
		return
	}
	if !a.auth.ValidateManagerPIN(req.ManagerPIN) {
		writeError(w, http.StatusForbidden, errors.New("invalid manager pin"))
		return
	}

	receipt, err := a.service.VoidReceipt(r.Context(), id, req.Reason)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (a *API) handlePurchases(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		query := r.URL.Query()
		list, err := a.service.ListPurchases(r.Context(), query.Get("date"), query.Get("status"))
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	case http.MethodPost:
		var req domain.PurchaseCreateRequest
		if !a.bind(w, r, &req) {
			return
		}
		purchase, err := a.service.CreatePurchase(r.Context(), req)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, purchase)
	default:
		writeMethodNotAllowed(w)
	}
}

// handlePurchaseActions serves /api/v1/purchases/{id}/payments and
// {id}/mark-paid.
func (a *API) handlePurchaseActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	id, action, err := splitActionPath(r.URL.Path, "/api/v1/purchases/")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	switch action {
	case "payments":
		var req domain.PurchasePaymentRequest
		if !a.bind(w, r, &req) {
			return
		}
		purchase, err := a.service.AddPurchasePayment(r.Context(), id, req)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, purchase)
	case "mark-paid":
		purchase, err := a.service.MarkPurchasePaid(r.Context(), id)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, purchase)
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown purchase action"))
	}
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	date := r.URL.Query().Get("date")
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)

	logs, err := a.service.ListAuditLogs(r.Context(), date, limit)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

// splitActionPath parses "<prefix>{id}" or "<prefix>{id}/<action>".
func splitActionPath(path string, prefix string) (int64, string, error) {
	if !strings.HasPrefix(path, prefix) {
		return 0, "", errors.New("invalid action path")
	}
	tail := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	rawID, action, _ := strings.Cut(tail, "/")
	if rawID == "" {
		return 0, "", errors.New("id required")
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		return 0, "", errors.New("id must be a positive integer")
	}
	if strings.Contains(action, "/") {
		return 0, "", errors.New("invalid action path")
	}
	return id, action, nil
}
