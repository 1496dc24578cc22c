package webhook

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/policyops/isebridge/pkg/ise"
	"github.com/policyops/isebridge/pkg/rule"
	"github.com/policyops/isebridge/pkg/schedule"
)

// stubClient counts remote calls so tests can assert which operations cost
// a round trip to the policy engine.
type stubClient struct {
	mu sync.Mutex

	deviceCalls int
	createCalls int
	deleteCalls int

	deviceErr error
	createErr error
	deleteErr error

	lastDoc *rule.Rule
	nextID  int
}

func (c *stubClient) FindNetworkDevices(ctx context.Context, filter string) ([]ise.NetworkDevice, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deviceCalls++
	if c.deviceErr != nil {
		return nil, c.deviceErr
	}
	return []ise.NetworkDevice{{ID: "nd-1", Name: "edge-sw-1"}}, nil
}

func (c *stubClient) CreateAuthorizationRule(ctx context.Context, policyID string, doc *rule.Rule, profile string, commands []string) (ise.RuleRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.createCalls++
	if c.createErr != nil {
		return ise.RuleRef{}, c.createErr
	}
	c.lastDoc = doc
	c.nextID++
	return ise.RuleRef{ID: fmt.Sprintf("r-%d", c.nextID), Name: doc.Name}, nil
}

func (c *stubClient) DeleteAuthorizationRule(ctx context.Context, policyID, ruleID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleteCalls++
	return c.deleteErr
}

func (c *stubClient) calls() (device, create, del int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deviceCalls, c.createCalls, c.deleteCalls
}

func newTestService(t *testing.T, client *stubClient, opts Options, seed map[string]string) *Service {
	t.Helper()
	sched := schedule.New(context.Background(), nil)
	t.Cleanup(sched.Stop)
	policy := &ise.PolicyContext{
		PolicySetID:  "ps-1",
		ShellProfile: "Priv15",
		CommandSets:  []string{"PermitAll"},
	}
	return NewService(client, ise.NewRegistry(seed), policy, sched, opts, nil)
}

func TestCreateImmediate(t *testing.T) {
	client := &stubClient{}
	svc := newTestService(t, client, Options{}, nil)

	result, err := svc.Create(context.Background(), CreateRequest{Assignee: "Jane Doe", IPAddress: "10.0.0.5"})
	require.NoError(t, err)

	assert.Equal(t, "Jane Doe_rw_override-10.0.0.5", result.RuleName)
	assert.False(t, result.Scheduled)
	assert.True(t, svc.Registry().Has("Jane Doe_rw_override-10.0.0.5"))

	_, creates, _ := client.calls()
	assert.Equal(t, 1, creates)

	// golden condition check on the document sent to the engine
	root := client.lastDoc.Condition.(*rule.Block)
	assert.Equal(t, "Jane", root.Children[0].(*rule.Attribute).AttributeValue)
	assert.Equal(t, "Doe", root.Children[1].(*rule.Attribute).AttributeValue)
	assert.Equal(t, "10.0.0.5", root.Children[2].(*rule.Attribute).AttributeValue)
}

func TestCreateDuplicateRejectedWithoutRemoteCall(t *testing.T) {
	client := &stubClient{}
	svc := newTestService(t, client, Options{}, map[string]string{
		"Jane Doe_rw_override-10.0.0.5": "r-0",
	})

	_, err := svc.Create(context.Background(), CreateRequest{Assignee: "Jane Doe", IPAddress: "10.0.0.5"})
	require.ErrorIs(t, err, ErrRuleExists)

	device, creates, _ := client.calls()
	assert.Zero(t, device, "duplicate must be rejected before any remote call")
	assert.Zero(t, creates)
}

func TestDeleteAbsentRejectedWithoutRemoteCall(t *testing.T) {
	client := &stubClient{}
	svc := newTestService(t, client, Options{}, nil)

	_, err := svc.Delete(context.Background(), DeleteRequest{Assignee: "Jane Doe", IPAddress: "10.0.0.5"})
	require.ErrorIs(t, err, ErrRuleNotRegistered)

	device, _, deletes := client.calls()
	assert.Zero(t, device)
	assert.Zero(t, deletes)
}

func TestCreateThenDeleteRoundTripsRegistry(t *testing.T) {
	client := &stubClient{}
	svc := newTestService(t, client, Options{}, map[string]string{
		"existing_rw_override-10.0.0.1": "r-0",
	})
	before := svc.Registry().Snapshot()

	_, err := svc.Create(context.Background(), CreateRequest{Assignee: "Jane Doe", IPAddress: "10.0.0.5"})
	require.NoError(t, err)
	_, err = svc.Delete(context.Background(), DeleteRequest{Assignee: "Jane Doe", IPAddress: "10.0.0.5"})
	require.NoError(t, err)

	assert.Equal(t, before, svc.Registry().Snapshot())
}

func TestCreateRejectsInvalidTarget(t *testing.T) {
	client := &stubClient{}
	svc := newTestService(t, client, Options{}, nil)

	cases := []CreateRequest{
		{Assignee: "Madonna", IPAddress: "10.0.0.5"},
		{Assignee: "Jane van Doe", IPAddress: "10.0.0.5"},
		{Assignee: "Jane Doe", IPAddress: "not-an-ip"},
	}
	for _, req := range cases {
		_, err := svc.Create(context.Background(), req)
		assert.ErrorIs(t, err, ErrValidation, "request %+v", req)
	}

	device, creates, _ := client.calls()
	assert.Zero(t, device)
	assert.Zero(t, creates)
}

func TestCreateRejectsUnknownDevice(t *testing.T) {
	client := &stubClient{deviceErr: fmt.Errorf("device: %w", ise.ErrNotFound)}
	svc := newTestService(t, client, Options{}, nil)

	_, err := svc.Create(context.Background(), CreateRequest{Assignee: "Jane Doe", IPAddress: "10.0.0.5"})
	assert.ErrorIs(t, err, ErrValidation)

	_, creates, _ := client.calls()
	assert.Zero(t, creates)
}

func TestCreateSurfacesDeviceLookupFailure(t *testing.T) {
	client := &stubClient{deviceErr: errors.New("engine unreachable")}
	svc := newTestService(t, client, Options{}, nil)

	_, err := svc.Create(context.Background(), CreateRequest{Assignee: "Jane Doe", IPAddress: "10.0.0.5"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrValidation)
}

func TestCreateRejectsPastStart(t *testing.T) {
	client := &stubClient{}
	svc := newTestService(t, client, Options{ScheduleStart: true}, nil)

	_, err := svc.Create(context.Background(), CreateRequest{
		Assignee:    "Jane Doe",
		IPAddress:   "10.0.0.5",
		ActualStart: time.Now().Add(-time.Hour).UTC().Format(time.RFC3339),
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCreateRejectsMissingStart(t *testing.T) {
	client := &stubClient{}
	svc := newTestService(t, client, Options{ScheduleStart: true}, nil)

	_, err := svc.Create(context.Background(), CreateRequest{Assignee: "Jane Doe", IPAddress: "10.0.0.5"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCreateRejectsMissingEnd(t *testing.T) {
	client := &stubClient{}
	svc := newTestService(t, client, Options{ScheduleEnd: true}, nil)

	_, err := svc.Create(context.Background(), CreateRequest{Assignee: "Jane Doe", IPAddress: "10.0.0.5"})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Zero(t, client.createCalls)
}

func TestCreateRejectsEndBeforeStart(t *testing.T) {
	client := &stubClient{}
	svc := newTestService(t, client, Options{ScheduleStart: true, ScheduleEnd: true}, nil)

	start := time.Now().Add(2 * time.Hour).UTC()
	_, err := svc.Create(context.Background(), CreateRequest{
		Assignee:    "Jane Doe",
		IPAddress:   "10.0.0.5",
		ActualStart: start.Format(time.RFC3339),
		ActualEnd:   start.Add(-time.Hour).Format(time.RFC3339),
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCreateScheduledDefersApply(t *testing.T) {
	client := &stubClient{}
	svc := newTestService(t, client, Options{ScheduleStart: true}, nil)

	result, err := svc.Create(context.Background(), CreateRequest{
		Assignee:    "Jane Doe",
		IPAddress:   "10.0.0.5",
		ActualStart: time.Now().Add(50 * time.Millisecond).UTC().Format(time.RFC3339Nano),
	})
	require.NoError(t, err)
	assert.True(t, result.Scheduled)

	// not applied yet
	_, creates, _ := client.calls()
	assert.Zero(t, creates)
	assert.False(t, svc.Registry().Has(result.RuleName))

	require.Eventually(t, func() bool {
		return svc.Registry().Has(result.RuleName)
	}, 2*time.Second, 10*time.Millisecond, "scheduled apply never fired")

	_, creates, _ = client.calls()
	assert.Equal(t, 1, creates)
}

func TestCreateWithScheduledEndRevokes(t *testing.T) {
	client := &stubClient{}
	svc := newTestService(t, client, Options{ScheduleEnd: true}, nil)

	result, err := svc.Create(context.Background(), CreateRequest{
		Assignee:  "Jane Doe",
		IPAddress: "10.0.0.5",
		ActualEnd: time.Now().Add(50 * time.Millisecond).UTC().Format(time.RFC3339Nano),
	})
	require.NoError(t, err)

	// applied immediately, revoke pending
	assert.True(t, svc.Registry().Has(result.RuleName))

	require.Eventually(t, func() bool {
		return !svc.Registry().Has(result.RuleName)
	}, 2*time.Second, 10*time.Millisecond, "scheduled revoke never fired")

	_, _, deletes := client.calls()
	assert.Equal(t, 1, deletes)
}

func TestScheduledRevokeOfAlreadyDeletedRuleIsQuiet(t *testing.T) {
	client := &stubClient{}
	svc := newTestService(t, client, Options{ScheduleEnd: true}, nil)

	result, err := svc.Create(context.Background(), CreateRequest{
		Assignee:  "Jane Doe",
		IPAddress: "10.0.0.5",
		ActualEnd: time.Now().Add(80 * time.Millisecond).UTC().Format(time.RFC3339Nano),
	})
	require.NoError(t, err)

	// webhook delete beats the timer
	_, err = svc.Delete(context.Background(), DeleteRequest{Assignee: "Jane Doe", IPAddress: "10.0.0.5"})
	require.NoError(t, err)

	time.Sleep(150 * time.Millisecond)

	_, _, deletes := client.calls()
	assert.Equal(t, 1, deletes, "revoke of an already-deleted rule must not call the engine again")
	assert.False(t, svc.Registry().Has(result.RuleName))
}

func TestCreateSurfacesRemoteCreateFailure(t *testing.T) {
	client := &stubClient{createErr: errors.New("engine unreachable")}
	svc := newTestService(t, client, Options{}, nil)

	_, err := svc.Create(context.Background(), CreateRequest{Assignee: "Jane Doe", IPAddress: "10.0.0.5"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrValidation)
	assert.False(t, svc.Registry().Has("Jane Doe_rw_override-10.0.0.5"))
}
