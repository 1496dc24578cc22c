package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/policyops/isebridge/pkg/ise"
	"github.com/policyops/isebridge/pkg/rule"
)

// ErrValidation marks a rejected request. The wrapped message explains what
// was wrong with the payload.
var ErrValidation = errors.New("webhook validation failed")

// validated carries the parsed fields of an accepted creation request.
// Nothing is retained when any check fails.
type validated struct {
	first, last string
	ruleName    string
	start, end  time.Time
}

// timeLayouts accepted for schedule timestamps. A timestamp without a zone
// is treated as UTC.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseTimestamp(value, field string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("%s is required when scheduling is enabled: %w", field, ErrValidation)
	}
	for _, layout := range timeLayouts {
		if ts, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid %s timestamp %q: %w", field, value, ErrValidation)
}

// validateTarget checks the parts shared by creation and deletion requests:
// the assignee splits into a first/last name pair and the IP is well formed.
// It returns the derived rule name.
func validateTarget(assignee, ipAddress string) (first, last, name string, err error) {
	first, last, err = rule.SplitAssignee(assignee)
	if err != nil {
		return "", "", "", fmt.Errorf("%v: %w", err, ErrValidation)
	}
	if _, err := netip.ParseAddr(ipAddress); err != nil {
		return "", "", "", fmt.Errorf("invalid IP address %q: %w", ipAddress, ErrValidation)
	}
	return first, last, rule.Name(assignee, ipAddress), nil
}

// validateCreate runs the full ordered check list for a creation request:
// target shape, device existence, then schedule time ordering. The device
// lookup happens only after the registry duplicate guard has passed, so a
// duplicate never costs a remote call.
func (s *Service) validateCreate(ctx context.Context, req CreateRequest) (*validated, error) {
	first, last, name, err := validateTarget(req.Assignee, req.IPAddress)
	if err != nil {
		return nil, err
	}

	if s.registry.Has(name) {
		return nil, fmt.Errorf("active authorization rule %q: %w", name, ErrRuleExists)
	}

	filter := "ipaddress.EQ." + req.IPAddress
	if _, err := s.client.FindNetworkDevices(ctx, filter); err != nil {
		if errors.Is(err, ise.ErrNotFound) {
			return nil, fmt.Errorf("no managed network device with IP %s: %w", req.IPAddress, ErrValidation)
		}
		return nil, fmt.Errorf("device lookup: %w", err)
	}

	v := &validated{first: first, last: last, ruleName: name}

	if s.scheduleStart {
		start, err := parseTimestamp(req.ActualStart, "start")
		if err != nil {
			return nil, err
		}
		if !start.After(time.Now()) {
			return nil, fmt.Errorf("start time %q must be in the future: %w", req.ActualStart, ErrValidation)
		}
		v.start = start
	}

	if s.scheduleEnd {
		end, err := parseTimestamp(req.ActualEnd, "end")
		if err != nil {
			return nil, err
		}
		switch {
		case s.scheduleStart && !end.After(v.start):
			return nil, fmt.Errorf("end time %q must be after the start time: %w", req.ActualEnd, ErrValidation)
		case !s.scheduleStart && !end.After(time.Now()):
			return nil, fmt.Errorf("end time %q must be in the future: %w", req.ActualEnd, ErrValidation)
		}
		v.end = end
	}

	return v, nil
}
