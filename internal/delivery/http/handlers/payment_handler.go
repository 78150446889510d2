package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/LavaJover/shvark-payment-service/internal/delivery/http/dto/payment/request"
	"github.com/LavaJover/shvark-payment-service/internal/delivery/http/dto/payment/response"
	"github.com/LavaJover/shvark-payment-service/internal/delivery/http/middleware"
	paymentdto "github.com/LavaJover/shvark-payment-service/internal/usecase/dto/payment"
	usecase "github.com/LavaJover/shvark-payment-service/internal/usecase/payment"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Provider callback statuses.
const (
	callbackSuccess = "success"
	callbackFailure = "failure"
	callbackCancel  = "cancel"
)

// PaymentHandler serves the payment endpoints and the provider callback.
type PaymentHandler struct {
	uc     usecase.PaymentUsecase
	logger *zap.Logger
}

func NewPaymentHandler(uc usecase.PaymentUsecase, logger *zap.Logger) *PaymentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentHandler{uc: uc, logger: logger}
}

// InitiatePayment handles POST /payments.
func (h *PaymentHandler) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	var req request.InitiatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error(), "")
		return
	}
	if req.OrderID == "" {
		writeError(w, http.StatusBadRequest, "order_id is required", "")
		return
	}

	out, err := h.uc.InitiatePayment(r.Context(), &paymentdto.InitiatePaymentInput{
		OrderID: req.OrderID,
		UserID:  middleware.UserID(r.Context()),
	})
	if err != nil {
		h.fail(w, r, "initiate payment", err)
		return
	}
	writeJSON(w, http.StatusCreated, response.FromInitiate(out))
}

// ExecutePayment handles POST /payments/{paymentID}/execute.
func (h *PaymentHandler) ExecutePayment(w http.ResponseWriter, r *http.Request) {
	out, err := h.uc.CompletePayment(r.Context(), &paymentdto.CompletePaymentInput{
		PaymentID: chi.URLParam(r, "paymentID"),
		UserID:    middleware.UserID(r.Context()),
	})
	h.writeCompletion(w, r, out, err)
}

// Callback handles the provider redirect GET /payments/callback?paymentID=...&status=....
func (h *PaymentHandler) Callback(w http.ResponseWriter, r *http.Request) {
	paymentID := r.URL.Query().Get("paymentID")
	status := r.URL.Query().Get("status")
	if paymentID == "" {
		writeError(w, http.StatusBadRequest, "paymentID is required", "")
		return
	}

	switch status {
	case callbackSuccess:
		out, err := h.uc.CompletePayment(r.Context(), &paymentdto.CompletePaymentInput{PaymentID: paymentID})
		h.writeCompletion(w, r, out, err)
	case callbackFailure, callbackCancel:
		// the redirect is unauthenticated, the provider confirms before anything is cancelled
		out, err := h.uc.CancelPayment(r.Context(), &paymentdto.CancelPaymentInput{
			PaymentID:           paymentID,
			Reason:              "provider callback: " + status,
			ConfirmWithProvider: true,
		})
		if err != nil {
			h.fail(w, r, "cancel payment", err)
			return
		}
		writeJSON(w, http.StatusOK, response.FromTransaction(out.Transaction, out.Order))
	default:
		writeError(w, http.StatusBadRequest, "unknown callback status "+status, "")
	}
}

// GetPaymentStatus handles GET /payments/{paymentID}.
func (h *PaymentHandler) GetPaymentStatus(w http.ResponseWriter, r *http.Request) {
	out, err := h.uc.QueryPaymentStatus(r.Context(), &paymentdto.QueryPaymentInput{
		PaymentID: chi.URLParam(r, "paymentID"),
		UserID:    middleware.UserID(r.Context()),
	})
	if err != nil {
		h.fail(w, r, "query payment", err)
		return
	}
	writeJSON(w, http.StatusOK, response.FromStatus(out))
}

// GetTransaction handles GET /transactions/{id}.
func (h *PaymentHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	out, err := h.uc.GetTransaction(r.Context(), chi.URLParam(r, "id"), middleware.UserID(r.Context()))
	if err != nil {
		h.fail(w, r, "get transaction", err)
		return
	}
	writeJSON(w, http.StatusOK, response.FromTransaction(out.Transaction, out.Order))
}

// Refund handles POST /transactions/{id}/refund.
func (h *PaymentHandler) Refund(w http.ResponseWriter, r *http.Request) {
	var req request.RefundRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error(), "")
			return
		}
	}

	out, err := h.uc.Refund(r.Context(), &paymentdto.RefundInput{
		TransactionID: chi.URLParam(r, "id"),
		Reason:        req.Reason,
		ActorID:       middleware.UserID(r.Context()),
	})
	if err != nil {
		h.fail(w, r, "refund", err)
		return
	}
	writeJSON(w, http.StatusOK, response.FromTransaction(out.Transaction, out.Order))
}

// Reconcile handles POST /reconcile.
func (h *PaymentHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	var req request.ReconcileRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error(), "")
			return
		}
	}

	var result *paymentdto.ReconcileResult
	if len(req.TransactionIDs) > 0 {
		result = h.uc.Reconcile(r.Context(), req.TransactionIDs)
	} else {
		var err error
		result, err = h.uc.ReconcileStale(r.Context())
		if err != nil {
			h.fail(w, r, "reconcile", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, response.FromReconcile(result))
}

// writeCompletion renders CompletePayment, which returns the FAILED transaction together with the decline.
func (h *PaymentHandler) writeCompletion(w http.ResponseWriter, r *http.Request, out *paymentdto.TransactionOutput, err error) {
	if err != nil && out == nil {
		h.fail(w, r, "complete payment", err)
		return
	}
	resp := response.FromTransaction(out.Transaction, out.Order)
	status := http.StatusOK
	if err != nil {
		resp.Error = err.Error()
		resp.Code = errorCode(err)
		status = statusFor(err)
	}
	writeJSON(w, status, resp)
}

func (h *PaymentHandler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("op", op),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeError(w, status, err.Error(), errorCode(err))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, code string) {
	writeJSON(w, status, response.ErrorResponse{Success: false, Error: msg, Code: code})
}
