// Package service hosts the lifecycle orchestrator. Each public operation
// handles one command: load the aggregate, gather external evidence, run
// the pure guards, apply the transition, persist with the expected version,
// and hand the produced events to the relay. Commands against different
// aggregates run fully in parallel; commands against the same aggregate are
// serialized by optimistic concurrency.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"quorum/internal/eventbus"
	"quorum/internal/geography"
	"quorum/internal/membership/metrics"
	"quorum/internal/membership/models"
	"quorum/internal/membership/validator"
	"quorum/internal/payment"
	id "quorum/pkg/domain"
	dErrors "quorum/pkg/domain-errors"
	"quorum/pkg/platform/sentinel"
	"quorum/pkg/requestcontext"
)

type Repository interface {
	Create(ctx context.Context, m *models.Membership) error
	FindByID(ctx context.Context, memberID id.MemberID) (*models.Membership, error)
	Save(ctx context.Context, m *models.Membership, expectedVersion int64) error
	IdentityInUse(ctx context.Context, tenantID id.TenantID, person models.PersonalInfo, excludeID id.MemberID) (bool, error)
}

type SequenceAllocator interface {
	Next(ctx context.Context, tenantCode string, year int, typeCode string) (int64, error)
}

type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type GeographyLookup interface {
	Resolve(ctx context.Context, ref string) (geography.Node, error)
}

type PaymentConfirmer interface {
	Check(ctx context.Context, paymentRef string) (payment.Confirmation, error)
}

type EventSink interface {
	Enqueue(ctx context.Context, envelopes ...eventbus.Envelope) error
}

// Orchestrator drives membership lifecycle commands.
type Orchestrator struct {
	repo     Repository
	sequence SequenceAllocator
	tx       TxRunner
	geo      GeographyLookup
	payments PaymentConfirmer
	events   EventSink

	cfg             validator.Config
	logger          *slog.Logger
	metrics         *metrics.Metrics
	clock           func() time.Time
	clockPinned     bool
	evidenceTimeout time.Duration
}

// now is the transition timestamp source. A request-scoped time from the
// middleware keeps every record and event of one command on the same
// instant; a pinned test clock wins over it.
func (o *Orchestrator) now(ctx context.Context) time.Time {
	if o.clockPinned {
		return o.clock()
	}
	return requestcontext.Now(ctx)
}

type Option func(o *Orchestrator)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithClock overrides the transition clock, letting tests pin timestamps.
func WithClock(clock func() time.Time) Option {
	return func(o *Orchestrator) {
		o.clock = clock
		o.clockPinned = true
	}
}

// WithConfig overrides the tenant policy knobs the guards evaluate against.
func WithConfig(cfg validator.Config) Option {
	return func(o *Orchestrator) { o.cfg = cfg }
}

// WithEvidenceTimeout bounds the parallel external checks per command.
func WithEvidenceTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.evidenceTimeout = d
		}
	}
}

// New constructs an Orchestrator.
func New(repo Repository, sequence SequenceAllocator, tx TxRunner, geo GeographyLookup, payments PaymentConfirmer, events EventSink, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		repo:            repo,
		sequence:        sequence,
		tx:              tx,
		geo:             geo,
		payments:        payments,
		events:          events,
		cfg:             validator.DefaultConfig(),
		logger:          slog.Default(),
		clock:           time.Now,
		evidenceTimeout: 3 * time.Second,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SubmitInput carries everything a registration needs. MemberID is chosen
// by the caller so retries of the same registration are idempotent.
type SubmitInput struct {
	MemberID     id.MemberID
	TenantID     id.TenantID
	TenantCode   string
	TypeCode     string
	Person       models.PersonalInfo
	GeographyRef string
	SponsorID    *id.MemberID
}

// Submit registers a membership and moves it Draft to Pending in one
// command. Replaying the same registration finds the aggregate already
// Pending and returns it unchanged.
func (o *Orchestrator) Submit(ctx context.Context, input SubmitInput) (*models.Membership, error) {
	defer o.observe("submit", o.clock())

	existing, err := o.repo.FindByID(ctx, input.MemberID)
	switch {
	case err == nil:
		if existing.State == models.StatePending {
			o.outcome("submit", "noop")
			return existing, nil
		}
		o.outcome("submit", "rejected")
		return nil, existing.CanEnter(models.StatePending)
	case errors.Is(err, sentinel.ErrNotFound):
		// fresh registration
	default:
		o.outcome("submit", "error")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load membership")
	}

	now := o.now(ctx)
	m, err := models.NewMembership(input.MemberID, input.TenantID, input.TenantCode, input.TypeCode, input.Person, input.SponsorID, now)
	if err != nil {
		o.outcome("submit", "rejected")
		return nil, err
	}

	geo := models.GeographyRef{Raw: input.GeographyRef}
	if result := validator.CanSubmit(m, geo); !result.Ok() {
		o.outcome("submit", "rejected")
		return nil, validationFailure(result)
	}
	if err := m.CanSubmit(geo); err != nil {
		o.outcome("submit", "rejected")
		return nil, err
	}
	m.ApplySubmit(geo, now)

	err = o.tx.RunInTx(ctx, func(ctx context.Context) error {
		return o.repo.Create(ctx, m)
	})
	if err != nil {
		o.outcome("submit", "error")
		if errors.Is(err, sentinel.ErrConflict) {
			o.conflict()
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "membership already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create membership")
	}

	o.publish(ctx, m)
	o.outcome("submit", "applied")
	return m, nil
}

// Approve moves Pending to Approved. The membership number is allocated in
// the same transaction as the save so a lost race never burns a number
// that another aggregate could have taken first within the scope.
func (o *Orchestrator) Approve(ctx context.Context, memberID id.MemberID, approverID id.ActorID) (*models.Membership, error) {
	defer o.observe("approve", o.clock())

	m, err := o.load(ctx, memberID)
	if err != nil {
		o.outcome("approve", "error")
		return nil, err
	}
	if m.State == models.StateApproved && m.Approval != nil && m.Approval.ApproverID == approverID {
		o.outcome("approve", "noop")
		return m, nil
	}
	if err := m.CanEnter(models.StateApproved); err != nil {
		o.outcome("approve", "rejected")
		return nil, err
	}

	evidence, err := o.gatherApprovalEvidence(ctx, m, approverID)
	if err != nil {
		o.outcome("approve", "error")
		return nil, err
	}
	if result := validator.CanApprove(m, evidence, o.cfg); !result.Ok() {
		o.outcome("approve", "rejected")
		return nil, validationFailure(result)
	}

	now := o.now(ctx)
	expectedVersion := m.Version
	err = o.tx.RunInTx(ctx, func(ctx context.Context) error {
		seq, err := o.sequence.Next(ctx, m.TenantCode, now.Year(), m.TypeCode)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to allocate membership number")
		}
		number := id.FormatMembershipNumber(m.TenantCode, now.Year(), m.TypeCode, seq)
		if err := m.CanApprove(approverID, number); err != nil {
			return err
		}
		m.ApplyApprove(approverID, number, now)
		return o.repo.Save(ctx, m, expectedVersion)
	})
	if err != nil {
		return nil, o.saveFailure("approve", err)
	}

	o.publish(ctx, m)
	o.outcome("approve", "applied")
	return m, nil
}

// Reject declines a pending application. Rejected is terminal.
func (o *Orchestrator) Reject(ctx context.Context, memberID id.MemberID, reviewerID id.ActorID, reason string) (*models.Membership, error) {
	defer o.observe("reject", o.clock())

	m, err := o.load(ctx, memberID)
	if err != nil {
		o.outcome("reject", "error")
		return nil, err
	}
	if m.State == models.StateRejected && m.Rejection != nil && m.Rejection.ReviewerID == reviewerID {
		o.outcome("reject", "noop")
		return m, nil
	}
	if err := m.CanReject(reviewerID, reason); err != nil {
		o.outcome("reject", "rejected")
		return nil, err
	}

	now := o.now(ctx)
	m.ApplyReject(reviewerID, reason, now)
	if err := o.save(ctx, m); err != nil {
		return nil, o.saveFailure("reject", err)
	}

	o.publish(ctx, m)
	o.outcome("reject", "applied")
	return m, nil
}

// RecordPayment confirms dues against the payment service and, with the
// residence geography re-validated, moves Approved to Active.
func (o *Orchestrator) RecordPayment(ctx context.Context, memberID id.MemberID, paymentRef string, amount int64) (*models.Membership, error) {
	defer o.observe("record_payment", o.clock())

	m, err := o.load(ctx, memberID)
	if err != nil {
		o.outcome("record_payment", "error")
		return nil, err
	}
	if m.State == models.StateActive && m.PaymentRef == paymentRef {
		o.outcome("record_payment", "noop")
		return m, nil
	}
	if err := m.CanEnterFrom(models.StateApproved, models.StateActive); err != nil {
		o.outcome("record_payment", "rejected")
		return nil, err
	}

	evidence, resolved, err := o.gatherActivationEvidence(ctx, m, paymentRef)
	if err != nil {
		o.outcome("record_payment", "error")
		return nil, err
	}
	if result := validator.CanActivate(m, evidence, o.cfg); !result.Ok() {
		o.outcome("record_payment", "rejected")
		return nil, validationFailure(result)
	}
	if evidence.PaymentAmount < amount {
		o.outcome("record_payment", "rejected")
		return nil, validationFailure(validator.Result{
			Reason: validator.ReasonPaymentInsufficient,
			Detail: "confirmed amount is below the declared amount",
		})
	}

	now := o.now(ctx)
	if err := m.CanActivate(paymentRef, resolved); err != nil {
		o.outcome("record_payment", "rejected")
		return nil, err
	}
	m.ApplyActivate(paymentRef, resolved, now)
	if err := o.save(ctx, m); err != nil {
		return nil, o.saveFailure("record_payment", err)
	}

	o.publish(ctx, m)
	o.outcome("record_payment", "applied")
	return m, nil
}

// Suspend moves Active to Suspended.
func (o *Orchestrator) Suspend(ctx context.Context, memberID id.MemberID, actorID id.ActorID, reason string) (*models.Membership, error) {
	defer o.observe("suspend", o.clock())

	m, err := o.load(ctx, memberID)
	if err != nil {
		o.outcome("suspend", "error")
		return nil, err
	}
	if m.State == models.StateSuspended && m.Suspension != nil && m.Suspension.ActorID == actorID && m.Suspension.Reason == reason {
		o.outcome("suspend", "noop")
		return m, nil
	}
	if err := m.CanSuspend(actorID, reason); err != nil {
		o.outcome("suspend", "rejected")
		return nil, err
	}

	m.ApplySuspend(actorID, reason, o.now(ctx))
	if err := o.save(ctx, m); err != nil {
		return nil, o.saveFailure("suspend", err)
	}

	o.publish(ctx, m)
	o.outcome("suspend", "applied")
	return m, nil
}

// Reactivate lifts a suspension, moving Suspended back to Active.
func (o *Orchestrator) Reactivate(ctx context.Context, memberID id.MemberID, actorID id.ActorID) (*models.Membership, error) {
	defer o.observe("reactivate", o.clock())

	m, err := o.load(ctx, memberID)
	if err != nil {
		o.outcome("reactivate", "error")
		return nil, err
	}
	if m.State == models.StateActive && m.Suspension != nil && m.Suspension.LiftedAt != nil {
		o.outcome("reactivate", "noop")
		return m, nil
	}
	if err := m.CanReactivate(actorID); err != nil {
		o.outcome("reactivate", "rejected")
		return nil, err
	}

	m.ApplyReactivate(actorID, o.now(ctx))
	if err := o.save(ctx, m); err != nil {
		return nil, o.saveFailure("reactivate", err)
	}

	o.publish(ctx, m)
	o.outcome("reactivate", "applied")
	return m, nil
}

// Terminate ends the membership from any non-terminal state. The aggregate
// is never deleted; terminated is the logical deletion state.
func (o *Orchestrator) Terminate(ctx context.Context, memberID id.MemberID, actorID id.ActorID, reason string) (*models.Membership, error) {
	defer o.observe("terminate", o.clock())

	m, err := o.load(ctx, memberID)
	if err != nil {
		o.outcome("terminate", "error")
		return nil, err
	}
	if m.State == models.StateTerminated && m.Termination != nil && m.Termination.ActorID == actorID && m.Termination.Reason == reason {
		o.outcome("terminate", "noop")
		return m, nil
	}
	if err := m.CanTerminate(actorID, reason); err != nil {
		o.outcome("terminate", "rejected")
		return nil, err
	}

	m.ApplyTerminate(actorID, reason, o.now(ctx))
	if err := o.save(ctx, m); err != nil {
		return nil, o.saveFailure("terminate", err)
	}

	o.publish(ctx, m)
	o.outcome("terminate", "applied")
	return m, nil
}

// Get returns the current snapshot.
func (o *Orchestrator) Get(ctx context.Context, memberID id.MemberID) (*models.Membership, error) {
	return o.load(ctx, memberID)
}

func (o *Orchestrator) load(ctx context.Context, memberID id.MemberID) (*models.Membership, error) {
	m, err := o.repo.FindByID(ctx, memberID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "membership not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load membership")
	}
	return m, nil
}

func (o *Orchestrator) save(ctx context.Context, m *models.Membership) error {
	expectedVersion := m.Version
	return o.tx.RunInTx(ctx, func(ctx context.Context) error {
		return o.repo.Save(ctx, m, expectedVersion)
	})
}

// saveFailure translates persistence errors, counting lost races.
func (o *Orchestrator) saveFailure(command string, err error) error {
	o.outcome(command, "error")
	switch {
	case errors.Is(err, sentinel.ErrConflict):
		o.conflict()
		return dErrors.Wrap(err, dErrors.CodeConflict, "membership was modified concurrently")
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "membership not found")
	case dErrors.HasCode(err, dErrors.CodeTimeout), dErrors.HasCode(err, dErrors.CodeInvariantViolation), dErrors.HasCode(err, dErrors.CodeInternal):
		return err
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save membership")
	}
}

// gatherApprovalEvidence fans out the external checks the approval guard
// needs: duplicate identity, geography resolution, and the sponsor's
// current state. A deadline expiry maps to a retryable timeout error, not
// a validator rejection.
func (o *Orchestrator) gatherApprovalEvidence(ctx context.Context, m *models.Membership, approverID id.ActorID) (validator.ApprovalEvidence, error) {
	evidence := validator.ApprovalEvidence{ApproverID: approverID}

	ctx, cancel := context.WithTimeout(ctx, o.evidenceTimeout)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		started := o.clock()
		duplicate, err := o.repo.IdentityInUse(ctx, m.TenantID, m.Person, m.ID)
		o.metrics.ObserveEvidenceLatency("identity", o.clock().Sub(started))
		if err != nil {
			return o.evidenceFailure("identity", err)
		}
		evidence.DuplicateIdentity = duplicate
		return nil
	})
	g.Go(func() error {
		started := o.clock()
		resolved, err := o.resolve(ctx, m.Geography)
		o.metrics.ObserveEvidenceLatency("geography", o.clock().Sub(started))
		if err != nil {
			return err
		}
		evidence.GeographyResolved = resolved
		return nil
	})
	if m.SponsorID != nil {
		sponsorID := *m.SponsorID
		g.Go(func() error {
			sponsor, err := o.repo.FindByID(ctx, sponsorID)
			if err != nil {
				if errors.Is(err, sentinel.ErrNotFound) {
					// unknown sponsor fails the sponsor rule, not the command
					return nil
				}
				return o.evidenceFailure("sponsor", err)
			}
			evidence.SponsorState = sponsor.State
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return validator.ApprovalEvidence{}, err
	}
	return evidence, nil
}

// gatherActivationEvidence fans out the payment confirmation and the
// residence geography re-validation. It returns the resolved reference
// alongside the evidence so the apply step records exactly what was
// validated.
func (o *Orchestrator) gatherActivationEvidence(ctx context.Context, m *models.Membership, paymentRef string) (validator.ActivationEvidence, models.GeographyRef, error) {
	evidence := validator.ActivationEvidence{PaymentRef: paymentRef}
	resolved := m.Geography

	ctx, cancel := context.WithTimeout(ctx, o.evidenceTimeout)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		started := o.clock()
		confirmation, err := o.payments.Check(ctx, paymentRef)
		o.metrics.ObserveEvidenceLatency("payment", o.clock().Sub(started))
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				// unknown reference means unconfirmed, a business rejection
				return nil
			}
			return o.evidenceFailure("payment", err)
		}
		evidence.PaymentConfirmed = confirmation.Confirmed
		evidence.PaymentAmount = confirmation.Amount
		return nil
	})
	g.Go(func() error {
		started := o.clock()
		ref, err := o.resolve(ctx, m.Geography)
		o.metrics.ObserveEvidenceLatency("geography", o.clock().Sub(started))
		if err != nil {
			return err
		}
		evidence.GeographyResolved = ref
		if ref != nil {
			resolved = *ref
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return validator.ActivationEvidence{}, models.GeographyRef{}, err
	}
	return evidence, resolved, nil
}

// resolve looks the aggregate's reference up, preferring the node id once
// one is known. An unknown reference yields nil evidence (a business
// rejection); an outage or deadline expiry is a retryable error.
func (o *Orchestrator) resolve(ctx context.Context, geo models.GeographyRef) (*models.GeographyRef, error) {
	ref := geo.Raw
	if geo.NodeID != "" {
		ref = geo.NodeID
	}
	if ref == "" {
		return nil, nil
	}
	node, err := o.geo.Resolve(ctx, ref)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, o.evidenceFailure("geography", err)
	}
	return &models.GeographyRef{Raw: geo.Raw, NodeID: node.ID, Path: node.Path, Level: node.Level}, nil
}

// evidenceFailure classifies an external check error: deadline expiries
// and outages are retryable, everything else is internal.
func (o *Orchestrator) evidenceFailure(source string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, source+" check timed out")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, source+" check is unavailable")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, source+" check failed")
	}
}

// publish hands the pending events to the relay and clears them. The save
// already committed; a relay refusal is logged and left to the relay's
// retry and dead-letter machinery, never surfaced to the caller.
func (o *Orchestrator) publish(ctx context.Context, m *models.Membership) {
	pending := m.PendingEvents()
	if len(pending) == 0 {
		return
	}
	envelopes, err := eventbus.WrapAll(pending)
	if err != nil {
		o.logger.Error("failed to wrap lifecycle events",
			"member_id", m.ID.String(), "error", err)
		return
	}
	if err := o.events.Enqueue(ctx, envelopes...); err != nil {
		o.logger.Error("failed to enqueue lifecycle events",
			"member_id", m.ID.String(), "events", len(envelopes), "error", err)
		return
	}
	m.ClearPendingEvents()
}

func (o *Orchestrator) outcome(command, result string) {
	o.metrics.IncrementOutcome(command, result)
}

func (o *Orchestrator) conflict() {
	o.metrics.IncrementConflict()
}

func (o *Orchestrator) observe(command string, started time.Time) {
	o.metrics.ObserveCommandLatency(command, o.clock().Sub(started))
}
