// Package webhook turns issue-tracker webhook events into authorization
// rule operations against the policy engine, immediately or at a scheduled
// time.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/policyops/isebridge/pkg/audit"
	"github.com/policyops/isebridge/pkg/ise"
	"github.com/policyops/isebridge/pkg/rule"
	"github.com/policyops/isebridge/pkg/schedule"
)

// ErrRuleExists is returned when a creation targets a rule name that is
// already active.
var ErrRuleExists = errors.New("authorization rule already active")

// ErrRuleNotRegistered is returned when a deletion targets a rule name
// with no active rule.
var ErrRuleNotRegistered = errors.New("no active authorization rule")

// PolicyAPI is the slice of the policy-engine client the service needs.
type PolicyAPI interface {
	FindNetworkDevices(ctx context.Context, filter string) ([]ise.NetworkDevice, error)
	CreateAuthorizationRule(ctx context.Context, policyID string, doc *rule.Rule, profile string, commands []string) (ise.RuleRef, error)
	DeleteAuthorizationRule(ctx context.Context, policyID, ruleID string) error
}

// CreateRequest is a rule-creation webhook event.
type CreateRequest struct {
	Assignee    string
	IPAddress   string
	ActualStart string
	ActualEnd   string
}

// DeleteRequest is a rule-deletion webhook event.
type DeleteRequest struct {
	Assignee  string
	IPAddress string
}

// Result acknowledges a processed event.
type Result struct {
	EventID   string
	RuleName  string
	Scheduled bool
	StartAt   time.Time
	EndAt     time.Time
}

// Options toggles deferred processing and auditing.
type Options struct {
	// ScheduleStart defers rule creation to the event's start timestamp.
	ScheduleStart bool
	// ScheduleEnd schedules rule removal at the event's end timestamp.
	ScheduleEnd bool
	// Audit receives a record per rule action; nil disables auditing.
	Audit *audit.Store
}

// Service orchestrates validation, rule construction, the active-rule
// registry and the scheduler for each webhook event.
type Service struct {
	client   PolicyAPI
	registry *ise.Registry
	policy   *ise.PolicyContext
	sched    *schedule.Scheduler

	scheduleStart bool
	scheduleEnd   bool
	audit         *audit.Store
	log           *slog.Logger
}

// NewService wires the webhook service.
func NewService(client PolicyAPI, registry *ise.Registry, policy *ise.PolicyContext, sched *schedule.Scheduler, opts Options, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		client:        client,
		registry:      registry,
		policy:        policy,
		sched:         sched,
		scheduleStart: opts.ScheduleStart,
		scheduleEnd:   opts.ScheduleEnd,
		audit:         opts.Audit,
		log:           log,
	}
}

// Registry exposes the active-rule registry for read-only endpoints.
func (s *Service) Registry() *ise.Registry {
	return s.registry
}

// AuditStore exposes the action log for read-only endpoints.
func (s *Service) AuditStore() *audit.Store {
	return s.audit
}

func eventID() string {
	return "evt_" + ulid.Make().String()
}

// Create processes a rule-creation event: validate, guard against
// duplicates, build the rule document, then apply it now or at the start
// time, with an optional scheduled removal at the end time.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Result, error) {
	id := eventID()
	log := s.log.With("event", id, "assignee", req.Assignee, "ip", req.IPAddress)
	log.Info("creation webhook received")

	v, err := s.validateCreate(ctx, req)
	if err != nil {
		log.Warn("creation webhook rejected", "error", err)
		s.recordAudit(audit.Entry{
			RuleName: rule.Name(req.Assignee, req.IPAddress),
			Assignee: req.Assignee,
			IP:       req.IPAddress,
			Action:   audit.ActionRejected,
			Detail:   err.Error(),
		})
		return nil, err
	}

	doc, err := rule.Build(v.first, v.last, []string{req.IPAddress}, v.ruleName)
	if err != nil {
		return nil, fmt.Errorf("build rule document: %w", err)
	}

	result := &Result{EventID: id, RuleName: v.ruleName, StartAt: v.start, EndAt: v.end}

	if s.scheduleStart {
		s.sched.Schedule("apply "+v.ruleName, v.start, func(jobCtx context.Context) {
			if err := s.apply(jobCtx, req, doc, v.ruleName); err != nil {
				log.Error("scheduled rule creation failed", "rule", v.ruleName, "error", err)
			}
		})
		result.Scheduled = true
		s.recordAudit(audit.Entry{
			RuleName: v.ruleName,
			Assignee: req.Assignee,
			IP:       req.IPAddress,
			Action:   audit.ActionScheduledCreate,
			Detail:   "apply at " + v.start.Format(time.RFC3339),
		})
	} else {
		if err := s.apply(ctx, req, doc, v.ruleName); err != nil {
			return nil, err
		}
	}

	if s.scheduleEnd {
		s.sched.Schedule("revoke "+v.ruleName, v.end, func(jobCtx context.Context) {
			s.revoke(jobCtx, req, v.ruleName)
		})
		result.Scheduled = true
		s.recordAudit(audit.Entry{
			RuleName: v.ruleName,
			Assignee: req.Assignee,
			IP:       req.IPAddress,
			Action:   audit.ActionScheduledDelete,
			Detail:   "revoke at " + v.end.Format(time.RFC3339),
		})
	}

	log.Info("creation webhook acknowledged", "rule", v.ruleName, "scheduled", result.Scheduled)
	return result, nil
}

// Delete processes a rule-deletion event. A rule name absent from the
// registry is rejected before any remote call.
func (s *Service) Delete(ctx context.Context, req DeleteRequest) (*Result, error) {
	id := eventID()
	log := s.log.With("event", id, "assignee", req.Assignee, "ip", req.IPAddress)
	log.Info("deletion webhook received")

	_, _, name, err := validateTarget(req.Assignee, req.IPAddress)
	if err != nil {
		log.Warn("deletion webhook rejected", "error", err)
		return nil, err
	}

	ruleID, ok := s.registry.ID(name)
	if !ok {
		log.Warn("deletion webhook rejected", "rule", name, "error", "not registered")
		s.recordAudit(audit.Entry{
			RuleName: name,
			Assignee: req.Assignee,
			IP:       req.IPAddress,
			Action:   audit.ActionRejected,
			Detail:   "delete requested for unregistered rule",
		})
		return nil, fmt.Errorf("rule %q: %w", name, ErrRuleNotRegistered)
	}

	if err := s.client.DeleteAuthorizationRule(ctx, s.policy.PolicySetID, ruleID); err != nil {
		return nil, fmt.Errorf("delete rule %q: %w", name, err)
	}
	s.registry.Remove(name)
	s.recordAudit(audit.Entry{
		RuleName: name,
		Assignee: req.Assignee,
		IP:       req.IPAddress,
		Action:   audit.ActionDeleted,
		Detail:   "webhook delete",
	})

	log.Info("deletion webhook acknowledged", "rule", name)
	return &Result{EventID: id, RuleName: name}, nil
}

// apply creates the rule remotely and registers it. Re-checks the registry
// first: a scheduled apply may fire after an identical rule appeared.
func (s *Service) apply(ctx context.Context, req CreateRequest, doc *rule.Rule, name string) error {
	if s.registry.Has(name) {
		s.log.Warn("skipping apply, rule already active", "rule", name)
		return nil
	}

	ref, err := s.client.CreateAuthorizationRule(ctx, s.policy.PolicySetID, doc, s.policy.ShellProfile, s.policy.CommandSets)
	if err != nil {
		s.recordAudit(audit.Entry{
			RuleName: name,
			Assignee: req.Assignee,
			IP:       req.IPAddress,
			Action:   audit.ActionFailed,
			Detail:   "create: " + err.Error(),
		})
		return fmt.Errorf("create rule %q: %w", name, err)
	}

	s.registry.Add(ref.Name, ref.ID)
	s.recordAudit(audit.Entry{
		RuleName: ref.Name,
		Assignee: req.Assignee,
		IP:       req.IPAddress,
		Action:   audit.ActionCreated,
	})
	return nil
}

// revoke removes a rule at its scheduled end time. The rule may already be
// gone (deleted by webhook before the timer fired); that is logged, not
// treated as a failure.
func (s *Service) revoke(ctx context.Context, req CreateRequest, name string) {
	ruleID, ok := s.registry.ID(name)
	if !ok {
		s.log.Info("scheduled revoke found no active rule, skipping", "rule", name)
		return
	}

	if err := s.client.DeleteAuthorizationRule(ctx, s.policy.PolicySetID, ruleID); err != nil {
		s.log.Error("scheduled rule removal failed", "rule", name, "error", err)
		s.recordAudit(audit.Entry{
			RuleName: name,
			Assignee: req.Assignee,
			IP:       req.IPAddress,
			Action:   audit.ActionFailed,
			Detail:   "revoke: " + err.Error(),
		})
		return
	}

	s.registry.Remove(name)
	s.recordAudit(audit.Entry{
		RuleName: name,
		Assignee: req.Assignee,
		IP:       req.IPAddress,
		Action:   audit.ActionDeleted,
		Detail:   "scheduled revoke",
	})
}

func (s *Service) recordAudit(e audit.Entry) {
	if err := s.audit.Record(e); err != nil {
		s.log.Error("failed to record audit entry", "rule", e.RuleName, "action", e.Action, "error", err)
	}
}
