package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/botio91514/gym-backend/internal/notify"
	"github.com/botio91514/gym-backend/internal/receipt"
	"github.com/go-chi/chi/v5"
)

const (
	notificationSent   = "sent"
	notificationQueued = "queued"
	notificationFailed = "failed"
	notificationNone   = "none"
)

type approvalResponse struct {
	Member            memberResponse `json:"member"`
	AlreadyConfirmed  bool           `json:"alreadyConfirmed"`
	Resumed           bool           `json:"resumed,omitempty"`
	ReceiptURL        string         `json:"receiptUrl,omitempty"`
	Notification      string         `json:"notification"`
	NotificationError string         `json:"notificationError,omitempty"`
}

type approvalFailureResponse struct {
	Error  errorBody      `json:"error"`
	Member memberResponse `json:"member"`
}

type notifyExpiredRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type notifyExpiredResponse struct {
	Sent      bool   `json:"sent"`
	Recipient string `json:"recipient"`
	Attempts  int    `json:"attempts"`
	MessageID string `json:"messageId,omitempty"`
}

type schedulerRunResponse struct {
	StartedAt      time.Time `json:"startedAt"`
	Expired        int       `json:"expired"`
	Reminded       int       `json:"reminded"`
	Skipped        int       `json:"skipped"`
	Conflicts      int       `json:"conflicts"`
	Failures       int       `json:"failures"`
	NotifyFailures int       `json:"notifyFailures"`
}

func (h *Handlers) ApproveMember(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "id is required")
		return
	}

	result, err := h.Lifecycle.Approve(r.Context(), id)
	if err != nil {
		if result != nil {
			// The confirmation is committed; report it together with the failure.
			var genErr *receipt.GenerationError
			code := "receipt_store_failed"
			if errors.As(err, &genErr) {
				code = "receipt_failed"
			}
			h.log.InternalError("members.approve: receipt not issued", err, "member_id", id)
			writeJSON(w, http.StatusInternalServerError, approvalFailureResponse{
				Error:  errorBody{Code: code, Message: "payment confirmed but the receipt could not be issued; approve again to retry"},
				Member: toMemberResponse(result.Member),
			})
			return
		}
		h.writeMemberError(w, "members.approve", err, "member_id", id)
		return
	}

	resp := approvalResponse{
		Member:           toMemberResponse(result.Member),
		AlreadyConfirmed: result.AlreadyConfirmed,
		Resumed:          result.Resumed,
		Notification:     notificationNone,
	}
	if result.Receipt != nil {
		resp.ReceiptURL = result.Receipt.URL
	}
	switch {
	case result.AlreadyConfirmed:
	case result.NotificationQueued:
		resp.Notification = notificationQueued
	case result.NotificationErr != nil:
		resp.Notification = notificationFailed
		resp.NotificationError = result.NotificationErr.Error()
	default:
		resp.Notification = notificationSent
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) NotifyExpired(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "id is required")
		return
	}

	var req notifyExpiredRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json body")
		return
	}

	delivery, err := h.Lifecycle.NotifyExpired(r.Context(), id, notify.Recipient{Email: req.Email, Name: req.Name})
	if err != nil {
		var terminal *notify.TerminalDeliveryError
		switch {
		case errors.As(err, &terminal):
			h.log.BusinessError("members.notify_expired: delivery failed", err, "member_id", id)
			writeError(w, http.StatusBadGateway, "delivery_failed", "email could not be delivered")
		case errors.Is(err, notify.ErrInvalidRecipient):
			h.log.BusinessError("members.notify_expired: invalid recipient", err, "member_id", id)
			writeFieldError(w, http.StatusBadRequest, "invalid_request", "email", "invalid recipient email")
		default:
			h.writeMemberError(w, "members.notify_expired", err, "member_id", id)
		}
		return
	}

	writeJSON(w, http.StatusOK, notifyExpiredResponse{
		Sent:      true,
		Recipient: delivery.Recipient.Email,
		Attempts:  delivery.Attempts,
		MessageID: delivery.MessageID,
	})
}

func (h *Handlers) RunScheduler(w http.ResponseWriter, r *http.Request) {
	report, err := h.Scheduler.RunOnce(r.Context())
	if err != nil {
		h.log.InternalError("scheduler.run: pass failed", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "scheduler pass failed")
		return
	}

	writeJSON(w, http.StatusOK, schedulerRunResponse{
		StartedAt:      report.StartedAt,
		Expired:        report.Expired,
		Reminded:       report.Reminded,
		Skipped:        report.Skipped,
		Conflicts:      report.Conflicts,
		Failures:       report.Failures,
		NotifyFailures: report.NotifyFailures,
	})
}
