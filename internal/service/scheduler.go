package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	kotel "github.com/kestrel-sh/kestrel/internal/adapter/otel"
	"github.com/kestrel-sh/kestrel/internal/bus"
	"github.com/kestrel-sh/kestrel/internal/domain/confirm"
	"github.com/kestrel-sh/kestrel/internal/domain/policy"
	"github.com/kestrel-sh/kestrel/internal/domain/toolcall"
	"github.com/kestrel-sh/kestrel/internal/port/store"
	"github.com/kestrel-sh/kestrel/internal/remote"
	"github.com/kestrel-sh/kestrel/internal/tools"
)

// Scheduler drives tool invocations through their lifecycle: validation,
// policy evaluation, confirmation, execution, and terminal classification.
// It returns exactly one completed call per scheduled request and never
// retries a call on its own.
type Scheduler struct {
	registry *tools.Registry
	bus      bus.Bus
	session  *Session
	log      *slog.Logger

	// Audit, Metrics, and OnPartial are optional collaborators.
	Audit     store.AuditStore
	Metrics   *kotel.Metrics
	OnPartial func(callID, text string)

	// Concurrency bounds parallel invocations; zero means unbounded.
	Concurrency int
}

// NewScheduler creates a scheduler over the given registry, confirmation bus,
// and session.
func NewScheduler(registry *tools.Registry, b bus.Bus, session *Session, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		registry: registry,
		bus:      b,
		session:  session,
		log:      log,
	}
}

// ScheduleAll runs the requests concurrently and returns their completed
// calls in request order. A failing or cancelled sibling never aborts the
// others; only ctx cancellation does, and even then every request still
// yields a completed call.
func (s *Scheduler) ScheduleAll(ctx context.Context, reqs []toolcall.Request) []toolcall.CompletedCall {
	results := make([]toolcall.CompletedCall, len(reqs))

	g := new(errgroup.Group)
	if s.Concurrency > 0 {
		g.SetLimit(s.Concurrency)
	}
	for i, req := range reqs {
		g.Go(func() error {
			results[i] = s.run(ctx, req)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Schedule runs a single request through its full lifecycle.
func (s *Scheduler) Schedule(ctx context.Context, req toolcall.Request) toolcall.CompletedCall {
	return s.run(ctx, req)
}

// auditInfo carries the policy decision and confirmation outcome of one
// lifecycle pass into the audit record.
type auditInfo struct {
	decision string
	reason   string
	outcome  string
}

func (s *Scheduler) run(ctx context.Context, req toolcall.Request) toolcall.CompletedCall {
	start := time.Now()
	ctx, span := kotel.StartInvocationSpan(ctx, req.CallID, req.Name)
	defer span.End()

	done, info := s.lifecycle(ctx, req)
	done.Request = req

	span.SetAttributes(attribute.String("invocation.status", string(done.Status)))
	s.record(ctx, &done, info, time.Since(start))
	return done
}

// lifecycle is the state machine body: it returns the terminal status and
// result for one request, plus the decision/outcome trail for the audit log.
func (s *Scheduler) lifecycle(ctx context.Context, req toolcall.Request) (toolcall.CompletedCall, auditInfo) {
	var info auditInfo
	if ctx.Err() != nil {
		return cancelled("aborted before validation"), info
	}

	tool, ok := s.registry.Get(req.Name)
	if !ok {
		return failed(toolcall.NewError(toolcall.ErrorValidation, "unknown tool %q", req.Name)), info
	}
	if err := tool.Validate(req.Args); err != nil {
		return failed(toolcall.NewError(toolcall.ErrorValidation, "%s: %v", req.Name, err)), info
	}

	call := describeCall(req, tool)
	eval := policy.Decide(call, s.session.Mode(), s.session.Grants())
	info.decision = string(eval.Decision)
	info.reason = eval.Reason
	s.log.Debug("policy evaluated",
		"call_id", req.CallID,
		"tool", req.Name,
		"decision", eval.Decision,
		"reason", eval.Reason,
	)
	if s.Metrics != nil {
		s.Metrics.Decisions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("tool", req.Name),
			attribute.String("decision", string(eval.Decision)),
		))
	}

	var resolution *bus.Resolution
	switch eval.Decision {
	case policy.DecisionDeny:
		return failed(toolcall.NewError(toolcall.ErrorPolicyDenied, "%s", eval.Reason)), info

	case policy.DecisionAsk:
		res, errCall := s.confirmCall(ctx, &req, tool, call)
		if errCall != nil {
			if errCall.Kind == toolcall.ErrorConfirmationCancelled {
				info.outcome = string(confirm.OutcomeCancel)
			}
			if errCall.Kind == toolcall.ErrorConfirmationCancelled || errCall.Kind == toolcall.ErrorAborted {
				return cancelledErr(errCall), info
			}
			return failed(errCall), info
		}
		resolution = res
		if res != nil {
			info.outcome = string(res.Outcome)
		}
	}

	if ctx.Err() != nil {
		return cancelled("aborted before execution"), info
	}

	s.log.Debug("executing", "call_id", req.CallID, "tool", req.Name)
	onPartial := s.partialFor(ctx, req.CallID)
	result, execErr := tool.Execute(ctx, req.Args, resolution, onPartial)
	return classify(ctx, result, execErr), info
}

// confirmCall publishes a confirmation request and handles its outcome. The
// modify-with-editor outcome rewrites the command and re-enters confirmation
// with a fresh bus request; the loop ends with a proceed or cancel.
func (s *Scheduler) confirmCall(ctx context.Context, req *toolcall.Request, tool tools.Tool, call policy.CallDescriptor) (*bus.Resolution, *toolcall.CallError) {
	for {
		details, err := tool.Confirmation(ctx, req.Args)
		if err != nil {
			return nil, toolcall.NewError(toolcall.ErrorValidation, "%s: %v", req.Name, err)
		}
		if details == nil {
			// Nothing to show an approver: the call proceeds as if allowed.
			return nil, nil
		}

		breq := bus.NewRequest(req.CallID, req.PromptID, req.Name, details)
		cctx, span := kotel.StartConfirmationSpan(ctx, breq.ID, req.Name)
		s.log.Info("confirmation requested",
			"call_id", req.CallID,
			"request_id", breq.ID,
			"tool", req.Name,
			"kind", details.Kind(),
		)

		res, err := s.bus.Publish(cctx, breq)
		span.End()
		if err != nil {
			if errors.Is(err, bus.ErrNoSubscribers) {
				return nil, toolcall.NewError(toolcall.ErrorConfig, "confirmation required for %s but no approver is connected", req.Name)
			}
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil, toolcall.NewError(toolcall.ErrorAborted, "aborted while awaiting confirmation for %s", req.Name)
			}
			return nil, toolcall.NewError(toolcall.ErrorTransport, "confirmation for %s: %v", req.Name, err)
		}

		if s.Metrics != nil {
			s.Metrics.Confirmations.Add(ctx, 1, metric.WithAttributes(
				attribute.String("tool", req.Name),
				attribute.String("outcome", string(res.Outcome)),
			))
		}
		s.log.Info("confirmation resolved",
			"call_id", req.CallID,
			"request_id", breq.ID,
			"outcome", res.Outcome,
		)

		switch res.Outcome {
		case confirm.OutcomeCancel:
			return nil, toolcall.NewError(toolcall.ErrorConfirmationCancelled, "user declined %s", req.Name)

		case confirm.OutcomeModifyWithEditor:
			if edited, ok := res.Answers["command"].(string); ok && edited != "" {
				if req.Args == nil {
					req.Args = make(map[string]any, 1)
				}
				req.Args["command"] = edited
				call.Command = edited
			}
			continue

		case confirm.OutcomeProceedAlways:
			s.session.Grant(call, true)
		case confirm.OutcomeProceedAlwaysSession:
			s.session.Grant(call, false)
		}

		if !res.Outcome.Proceed() {
			return nil, toolcall.NewError(toolcall.ErrorConfirmationCancelled, "unrecognized outcome %q for %s", res.Outcome, req.Name)
		}
		return &res, nil
	}
}

// partialFor wraps the OnPartial hook for one call, suppressing updates after
// cancellation.
func (s *Scheduler) partialFor(ctx context.Context, callID string) func(string) {
	if s.OnPartial == nil {
		return nil
	}
	return func(text string) {
		if ctx.Err() == nil {
			s.OnPartial(callID, text)
		}
	}
}

// classify maps an execution result and error to a terminal completed call.
// Cancellation wins over other classifications and keeps partial output.
func classify(ctx context.Context, result toolcall.Result, execErr error) toolcall.CompletedCall {
	if execErr != nil {
		if errors.Is(execErr, context.Canceled) || errors.Is(execErr, context.DeadlineExceeded) || ctx.Err() != nil {
			result.Error = toolcall.NewError(toolcall.ErrorAborted, "execution aborted: %v", execErr)
			return toolcall.CompletedCall{Status: toolcall.StatusCancelled, Result: result}
		}

		var authErr *remote.AuthStatusError
		if errors.As(execErr, &authErr) {
			result.Error = toolcall.NewError(toolcall.ErrorAuth, "%v", execErr)
			return toolcall.CompletedCall{Status: toolcall.StatusFailed, Result: result}
		}

		var callErr *toolcall.CallError
		if errors.As(execErr, &callErr) {
			result.Error = callErr
			return toolcall.CompletedCall{Status: toolcall.StatusFailed, Result: result}
		}

		result.Error = toolcall.NewError(toolcall.ErrorTransport, "%v", execErr)
		return toolcall.CompletedCall{Status: toolcall.StatusFailed, Result: result}
	}

	if result.Error != nil {
		return toolcall.CompletedCall{Status: toolcall.StatusFailed, Result: result}
	}
	return toolcall.CompletedCall{Status: toolcall.StatusSucceeded, Result: result}
}

// describeCall projects a request onto the policy-relevant descriptor.
func describeCall(req toolcall.Request, tool tools.Tool) policy.CallDescriptor {
	call := policy.CallDescriptor{
		Tool:     req.Name,
		Mutating: tool.Kind().Mutating(),
		Edit:     tool.Kind().IsEdit(),
	}
	if command, ok := req.Args["command"].(string); ok {
		call.Command = command
	}
	if path, ok := req.Args["path"].(string); ok {
		call.Path = path
	}
	return call
}

// record emits the terminal log line, metrics, and audit entry for a call.
func (s *Scheduler) record(ctx context.Context, done *toolcall.CompletedCall, info auditInfo, elapsed time.Duration) {
	errKind := ""
	message := ""
	if done.Result.Error != nil {
		errKind = string(done.Result.Error.Kind)
		message = done.Result.Error.Message
	}
	if message == "" {
		// Allowed calls carry the decision reason instead of an error message.
		message = info.reason
	}

	s.log.Info("invocation completed",
		"call_id", done.Request.CallID,
		"tool", done.Request.Name,
		"status", done.Status,
		"error_kind", errKind,
		"duration_ms", elapsed.Milliseconds(),
	)

	if s.Metrics != nil {
		s.Metrics.Invocations.Add(ctx, 1, metric.WithAttributes(
			attribute.String("tool", done.Request.Name),
			attribute.String("status", string(done.Status)),
		))
		s.Metrics.InvocationDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
			attribute.String("tool", done.Request.Name),
		))
	}

	if s.Audit != nil {
		// Audit uses a detached context so a cancelled call is still recorded.
		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		rec := &store.AuditRecord{
			ID:        uuid.NewString(),
			PromptID:  done.Request.PromptID,
			CallID:    done.Request.CallID,
			Tool:      done.Request.Name,
			Decision:  info.decision,
			Outcome:   info.outcome,
			Status:    string(done.Status),
			ErrorKind: errKind,
			Message:   message,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.Audit.RecordInvocation(actx, rec); err != nil {
			s.log.Warn("audit record failed", "call_id", done.Request.CallID, "error", err)
		}
	}
}

func failed(err *toolcall.CallError) toolcall.CompletedCall {
	return toolcall.CompletedCall{
		Status: toolcall.StatusFailed,
		Result: toolcall.Result{Error: err},
	}
}

func cancelled(msg string) toolcall.CompletedCall {
	return cancelledErr(toolcall.NewError(toolcall.ErrorAborted, "%s", msg))
}

func cancelledErr(err *toolcall.CallError) toolcall.CompletedCall {
	return toolcall.CompletedCall{
		Status: toolcall.StatusCancelled,
		Result: toolcall.Result{Error: err},
	}
}
