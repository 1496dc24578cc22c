package ise

import (
	"context"
	"fmt"
	"log/slog"
)

// PolicyContext holds the remote objects every rule operation depends on,
// resolved once at startup.
type PolicyContext struct {
	PolicySetID  string
	ShellProfile string
	CommandSets  []string
}

// Preflight verifies the configured policy set, shell profile and command
// sets exist on the policy engine, and loads the currently active override
// rules. Any missing object is a fatal configuration error: the process
// must not start accepting webhooks it cannot honor.
func Preflight(ctx context.Context, client *Client, policySetName, shellProfileName string, commandSetNames []string, log *slog.Logger) (*PolicyContext, *Registry, error) {
	if log == nil {
		log = slog.Default()
	}

	policyID, err := client.FindPolicySetID(ctx, policySetName)
	if err != nil {
		return nil, nil, fmt.Errorf("policy set %q must exist before startup: %w", policySetName, err)
	}

	profile, err := client.FindShellProfile(ctx, shellProfileName)
	if err != nil {
		return nil, nil, fmt.Errorf("shell profile %q must exist before startup: %w", shellProfileName, err)
	}

	matched, err := client.FindCommandSets(ctx, commandSetNames)
	if err != nil {
		return nil, nil, fmt.Errorf("look up command sets: %w", err)
	}
	if len(matched) != len(commandSetNames) {
		return nil, nil, fmt.Errorf("command sets missing on policy engine: requested %v, found %v", commandSetNames, matched)
	}

	existing, err := client.GetAuthorizationRules(ctx, policyID)
	if err != nil {
		return nil, nil, fmt.Errorf("load existing authorization rules: %w", err)
	}

	log.Info("preflight complete",
		"policy_set_id", policyID,
		"shell_profile", profile.Name,
		"command_sets", matched,
		"active_rules", len(existing),
	)

	return &PolicyContext{
		PolicySetID:  policyID,
		ShellProfile: profile.Name,
		CommandSets:  matched,
	}, NewRegistry(existing), nil
}
