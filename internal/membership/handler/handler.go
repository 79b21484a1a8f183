package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"quorum/internal/membership/models"
	"quorum/internal/membership/service"
	id "quorum/pkg/domain"
	dErrors "quorum/pkg/domain-errors"
	"quorum/pkg/platform/httputil"
	"quorum/pkg/requestcontext"
)

// Service defines the interface for lifecycle commands.
type Service interface {
	Submit(ctx context.Context, input service.SubmitInput) (*models.Membership, error)
	Approve(ctx context.Context, memberID id.MemberID, approverID id.ActorID) (*models.Membership, error)
	Reject(ctx context.Context, memberID id.MemberID, reviewerID id.ActorID, reason string) (*models.Membership, error)
	RecordPayment(ctx context.Context, memberID id.MemberID, paymentRef string, amount int64) (*models.Membership, error)
	Suspend(ctx context.Context, memberID id.MemberID, actorID id.ActorID, reason string) (*models.Membership, error)
	Reactivate(ctx context.Context, memberID id.MemberID, actorID id.ActorID) (*models.Membership, error)
	Terminate(ctx context.Context, memberID id.MemberID, actorID id.ActorID, reason string) (*models.Membership, error)
	Get(ctx context.Context, memberID id.MemberID) (*models.Membership, error)
}

// Handler wires membership endpoints to the lifecycle orchestrator.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a membership handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts membership endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/memberships", func(r chi.Router) {
		r.Post("/", h.HandleSubmit)
		r.Route("/{memberID}", func(r chi.Router) {
			r.Get("/", h.HandleGet)
			r.Post("/approve", h.HandleApprove)
			r.Post("/reject", h.HandleReject)
			r.Post("/payment", h.HandleRecordPayment)
			r.Post("/suspend", h.HandleSuspend)
			r.Post("/reactivate", h.HandleReactivate)
			r.Post("/terminate", h.HandleTerminate)
		})
	})
}

// HandleSubmit handles POST /memberships.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[SubmitRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	m, err := h.service.Submit(ctx, req.Input())
	if err != nil {
		h.commandFailed(ctx, "submit", requestID, req.MemberID, err)
		writeCommandError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "membership submitted",
		"request_id", requestID,
		"member_id", m.ID,
		"tenant_code", m.TenantCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, FromMembership(m))
}

// HandleGet handles GET /memberships/{memberID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	memberID, ok := h.memberID(w, r)
	if !ok {
		return
	}

	m, err := h.service.Get(r.Context(), memberID)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromMembership(m))
}

// HandleApprove handles POST /memberships/{memberID}/approve.
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	memberID, ok := h.memberID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ApproveRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	m, err := h.service.Approve(ctx, memberID, req.parsedApprover)
	if err != nil {
		h.commandFailed(ctx, "approve", requestID, memberID.String(), err)
		writeCommandError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "membership approved",
		"request_id", requestID,
		"member_id", m.ID,
		"number", m.Number,
	)
	httputil.WriteJSON(w, http.StatusOK, FromMembership(m))
}

// HandleReject handles POST /memberships/{memberID}/reject.
func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	memberID, ok := h.memberID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RejectRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	m, err := h.service.Reject(ctx, memberID, req.parsedReviewer, req.Reason)
	if err != nil {
		h.commandFailed(ctx, "reject", requestID, memberID.String(), err)
		writeCommandError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromMembership(m))
}

// HandleRecordPayment handles POST /memberships/{memberID}/payment.
func (h *Handler) HandleRecordPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	memberID, ok := h.memberID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[PaymentRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	m, err := h.service.RecordPayment(ctx, memberID, req.PaymentRef, req.Amount)
	if err != nil {
		h.commandFailed(ctx, "record_payment", requestID, memberID.String(), err)
		writeCommandError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "membership activated",
		"request_id", requestID,
		"member_id", m.ID,
		"payment_ref", req.PaymentRef,
	)
	httputil.WriteJSON(w, http.StatusOK, FromMembership(m))
}

// HandleSuspend handles POST /memberships/{memberID}/suspend.
func (h *Handler) HandleSuspend(w http.ResponseWriter, r *http.Request) {
	h.actorAction(w, r, "suspend", func(ctx context.Context, memberID id.MemberID, req *ActorActionRequest) (*models.Membership, error) {
		return h.service.Suspend(ctx, memberID, req.parsedActor, req.Reason)
	})
}

// HandleReactivate handles POST /memberships/{memberID}/reactivate.
func (h *Handler) HandleReactivate(w http.ResponseWriter, r *http.Request) {
	h.actorAction(w, r, "reactivate", func(ctx context.Context, memberID id.MemberID, req *ActorActionRequest) (*models.Membership, error) {
		return h.service.Reactivate(ctx, memberID, req.parsedActor)
	})
}

// HandleTerminate handles POST /memberships/{memberID}/terminate.
func (h *Handler) HandleTerminate(w http.ResponseWriter, r *http.Request) {
	h.actorAction(w, r, "terminate", func(ctx context.Context, memberID id.MemberID, req *ActorActionRequest) (*models.Membership, error) {
		return h.service.Terminate(ctx, memberID, req.parsedActor, req.Reason)
	})
}

func (h *Handler) actorAction(w http.ResponseWriter, r *http.Request, command string,
	invoke func(ctx context.Context, memberID id.MemberID, req *ActorActionRequest) (*models.Membership, error)) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	memberID, ok := h.memberID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ActorActionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	m, err := invoke(ctx, memberID, req)
	if err != nil {
		h.commandFailed(ctx, command, requestID, memberID.String(), err)
		writeCommandError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "membership command applied",
		"request_id", requestID,
		"command", command,
		"member_id", m.ID,
		"state", m.State,
	)
	httputil.WriteJSON(w, http.StatusOK, FromMembership(m))
}

func (h *Handler) memberID(w http.ResponseWriter, r *http.Request) (id.MemberID, bool) {
	memberID, err := id.ParseMemberID(chi.URLParam(r, "memberID"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "member id is invalid"))
		return id.MemberID{}, false
	}
	return memberID, true
}

func (h *Handler) commandFailed(ctx context.Context, command, requestID, memberID string, err error) {
	h.logger.ErrorContext(ctx, "membership command failed",
		"request_id", requestID,
		"command", command,
		"member_id", memberID,
		"error", err,
	)
}

// writeCommandError extends the shared envelope with the typed guard reason
// so API callers can branch on business rejections without string matching.
func writeCommandError(w http.ResponseWriter, err error) {
	if vf, ok := service.AsValidationFailure(err); ok {
		httputil.WriteJSON(w, dErrors.ToHTTPStatus(err), map[string]string{
			"error":             string(dErrors.CodeValidation),
			"error_description": vf.Detail,
			"reason":            string(vf.Reason),
		})
		return
	}
	if ite, ok := models.AsInvalidTransition(err); ok {
		httputil.WriteJSON(w, dErrors.ToHTTPStatus(err), map[string]string{
			"error":             string(dErrors.CodeInvariantViolation),
			"error_description": ite.Error(),
			"from":              ite.From.String(),
			"to":                ite.To.String(),
		})
		return
	}
	httputil.WriteError(w, err)
}
