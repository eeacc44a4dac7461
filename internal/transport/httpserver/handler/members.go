package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	membershipdomain "github.com/botio91514/gym-backend/internal/domain/membership"
	"github.com/go-chi/chi/v5"
)

type registerMemberRequest struct {
	Name          string  `json:"name"`
	Email         string  `json:"email"`
	Phone         string  `json:"phone"`
	DOB           string  `json:"dob"`
	Plan          string  `json:"plan"`
	StartDate     string  `json:"startDate"`
	EndDate       *string `json:"endDate"`
	PaymentMethod string  `json:"paymentMethod"`
}

type updateMemberRequest struct {
	Name      *string `json:"name"`
	Email     *string `json:"email"`
	Phone     *string `json:"phone"`
	Plan      *string `json:"plan"`
	StartDate *string `json:"startDate"`
	EndDate   *string `json:"endDate"`
}

type memberResponse struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Email              string    `json:"email"`
	Phone              string    `json:"phone"`
	DOB                string    `json:"dob"`
	Plan               string    `json:"plan"`
	PlanName           string    `json:"planName"`
	AmountINR          int       `json:"amount"`
	StartDate          time.Time `json:"startDate"`
	EndDate            time.Time `json:"endDate"`
	PaymentMethod      string    `json:"paymentMethod"`
	PaymentStatus      string    `json:"paymentStatus"`
	SubscriptionStatus string    `json:"subscriptionStatus"`
	ReceiptURL         string    `json:"receiptUrl,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

type memberListResponse struct {
	Items []memberResponse `json:"items"`
	Total int64            `json:"total"`
}

type emailAvailabilityResponse struct {
	Email     string `json:"email"`
	Available bool   `json:"available"`
}

func (h *Handlers) RegisterMember(w http.ResponseWriter, r *http.Request) {
	var req registerMemberRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json body")
		return
	}

	dob, err := parseDate(req.DOB)
	if err != nil {
		writeFieldError(w, http.StatusBadRequest, "invalid_request", "dob", "invalid dob")
		return
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		writeFieldError(w, http.StatusBadRequest, "invalid_request", "startDate", "invalid startDate")
		return
	}
	var end *time.Time
	if req.EndDate != nil {
		end, err = parseDateParam(*req.EndDate)
		if err != nil {
			writeFieldError(w, http.StatusBadRequest, "invalid_request", "endDate", "invalid endDate")
			return
		}
	}

	created, err := h.Members.Register(r.Context(), membershipdomain.RegisterInput{
		Name:          req.Name,
		Email:         req.Email,
		Phone:         req.Phone,
		DateOfBirth:   dob,
		Plan:          req.Plan,
		StartDate:     start,
		EndDate:       end,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		h.writeMemberError(w, "members.register", err)
		return
	}

	h.log.Info("members.register: member registered", "member_id", created.ID, "plan", created.Plan)
	writeJSON(w, http.StatusCreated, toMemberResponse(*created))
}

func (h *Handlers) CheckEmail(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	available, err := h.Members.EmailAvailable(r.Context(), email)
	if err != nil {
		h.writeMemberError(w, "members.check_email", err)
		return
	}
	writeJSON(w, http.StatusOK, emailAvailabilityResponse{Email: strings.ToLower(email), Available: available})
}

func (h *Handlers) ListMembers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit, err := parseIntParam(query.Get("limit"), 50)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid limit")
		return
	}
	offset, err := parseIntParam(query.Get("offset"), 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid offset")
		return
	}

	filter := membershipdomain.ListFilter{
		PaymentStatus:      membershipdomain.PaymentStatus(strings.ToLower(query.Get("payment_status"))),
		SubscriptionStatus: membershipdomain.SubscriptionStatus(strings.ToLower(query.Get("subscription_status"))),
		Query:              query.Get("q"),
		Limit:              limit,
		Offset:             offset,
	}

	members, total, err := h.Members.List(r.Context(), filter)
	if err != nil {
		h.writeMemberError(w, "members.list", err)
		return
	}

	items := make([]memberResponse, 0, len(members))
	for _, m := range members {
		items = append(items, toMemberResponse(m))
	}
	writeJSON(w, http.StatusOK, memberListResponse{Items: items, Total: total})
}

func (h *Handlers) GetMember(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "id is required")
		return
	}

	member, err := h.Members.Get(r.Context(), id)
	if err != nil {
		h.writeMemberError(w, "members.get", err, "member_id", id)
		return
	}
	writeJSON(w, http.StatusOK, toMemberResponse(*member))
}

func (h *Handlers) UpdateMember(w http.ResponseWriter, r *http.Request) {
	var req updateMemberRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json body")
		return
	}

	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "id is required")
		return
	}

	input := membershipdomain.UpdateInput{
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
		Plan:  req.Plan,
	}
	if req.StartDate != nil {
		start, err := parseDate(*req.StartDate)
		if err != nil {
			writeFieldError(w, http.StatusBadRequest, "invalid_request", "startDate", "invalid startDate")
			return
		}
		input.StartDate = &start
	}
	if req.EndDate != nil {
		end, err := parseDate(*req.EndDate)
		if err != nil {
			writeFieldError(w, http.StatusBadRequest, "invalid_request", "endDate", "invalid endDate")
			return
		}
		input.EndDate = &end
	}

	updated, err := h.Members.Update(r.Context(), id, input)
	if err != nil {
		h.writeMemberError(w, "members.update", err, "member_id", id)
		return
	}
	writeJSON(w, http.StatusOK, toMemberResponse(*updated))
}

func (h *Handlers) DeleteMember(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "id is required")
		return
	}

	if err := h.Members.Delete(r.Context(), id); err != nil {
		h.writeMemberError(w, "members.delete", err, "member_id", id)
		return
	}
	h.log.Info("members.delete: member deleted", "member_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// writeMemberError maps membership errors onto the JSON error envelope.
func (h *Handlers) writeMemberError(w http.ResponseWriter, op string, err error, args ...any) {
	var validation *membershipdomain.ValidationError
	var conflict *membershipdomain.ConflictError

	switch {
	case errors.As(err, &validation):
		h.log.BusinessError(op+": validation failed", err, args...)
		writeFieldError(w, http.StatusBadRequest, "invalid_request", validation.Field, validation.Error())
	case errors.As(err, &conflict):
		h.log.BusinessError(op+": duplicate member", err, args...)
		writeFieldError(w, http.StatusConflict, "already_registered", conflict.Field, conflict.Error())
	case errors.Is(err, membershipdomain.ErrMemberNotFound):
		h.log.BusinessError(op+": member not found", err, args...)
		writeError(w, http.StatusNotFound, "member_not_found", "member not found")
	case errors.Is(err, membershipdomain.ErrStatusConflict):
		h.log.BusinessError(op+": status changed concurrently", err, args...)
		writeError(w, http.StatusConflict, "status_conflict", "member status changed, retry the request")
	default:
		h.log.InternalError(op+": failed", err, args...)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func toMemberResponse(m membershipdomain.Member) memberResponse {
	terms := m.Plan.Terms()
	return memberResponse{
		ID:                 m.ID,
		Name:               m.Name,
		Email:              m.Email,
		Phone:              m.Phone,
		DOB:                m.DateOfBirth.Format(dateLayout),
		Plan:               string(m.Plan),
		PlanName:           m.Plan.DisplayName(),
		AmountINR:          terms.PriceINR,
		StartDate:          m.StartDate,
		EndDate:            m.EndDate,
		PaymentMethod:      string(m.PaymentMethod),
		PaymentStatus:      string(m.PaymentStatus),
		SubscriptionStatus: string(m.SubscriptionStatus),
		ReceiptURL:         m.ReceiptPath,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}
