// Package ise talks to a Cisco ISE style policy engine over its ERS and
// OpenAPI REST surfaces and tracks which override rules are active.
package ise

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/policyops/isebridge/pkg/rule"
)

// ErrNotFound is returned when a lookup matches nothing on the remote system.
var ErrNotFound = errors.New("not found on policy engine")

// Config holds the connection settings for the policy engine.
type Config struct {
	// Address is the ISE host (host or host:port). A full URL with scheme
	// is accepted as-is, which tests use to point at a local server.
	Address  string `yaml:"address" envconfig:"ADDRESS"`
	Username string `yaml:"username" envconfig:"USERNAME"`
	Password string `yaml:"password" envconfig:"PASSWORD"`

	// InsecureSkipVerify disables TLS verification. ISE deployments
	// commonly run self-signed certificates.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify" envconfig:"INSECURE_SKIP_VERIFY"`

	// RetryMax is the number of retries after the first attempt for
	// rate-limited or server-error responses.
	RetryMax int           `yaml:"retry_max" envconfig:"RETRY_MAX"`
	Timeout  time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
}

// Client is a policy-engine API client. All operations take a context and
// return ErrNotFound (wrapped) when a lookup matches nothing.
type Client struct {
	http     *retryablehttp.Client
	baseURL  string
	username string
	password string
	log      *slog.Logger
}

// NewClient constructs a policy-engine client. Rate-limited (429) and
// server-error responses are retried with exponential backoff before the
// call fails.
func NewClient(cfg Config, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}

	base := cfg.Address
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	base = strings.TrimRight(base, "/")

	rc := retryablehttp.NewClient()
	rc.Logger = nil
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 30 * time.Second
	if cfg.RetryMax > 0 {
		rc.RetryMax = cfg.RetryMax
	} else {
		rc.RetryMax = 4
	}
	if cfg.Timeout > 0 {
		rc.HTTPClient.Timeout = cfg.Timeout
	} else {
		rc.HTTPClient.Timeout = 30 * time.Second
	}
	if cfg.InsecureSkipVerify {
		rc.HTTPClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return &Client{
		http:     rc,
		baseURL:  base,
		username: cfg.Username,
		password: cfg.Password,
		log:      log,
	}
}

func (c *Client) openAPIURL(parts ...string) string {
	return c.baseURL + "/api/v1/" + strings.Join(parts, "/")
}

func (c *Client) ersURL(parts ...string) string {
	return c.baseURL + "/ers/config/" + strings.Join(parts, "/")
}

// do performs a JSON request and decodes the response into out (when non-nil).
func (c *Client) do(ctx context.Context, method, rawURL string, query url.Values, body, out any) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, rawURL, payload)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.username, c.password)
	if len(query) > 0 {
		req.URL.RawQuery = query.Encode()
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Error("policy engine request failed",
			"method", method,
			"path", req.URL.Path,
			"status", resp.StatusCode,
			"body", string(snippet),
		)
		return fmt.Errorf("%s %s: unexpected status %d", method, req.URL.Path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// FindPolicySetID resolves a device-admin policy set name to its id.
func (c *Client) FindPolicySetID(ctx context.Context, name string) (string, error) {
	var envelope openAPIPolicySets
	if err := c.do(ctx, http.MethodGet, c.openAPIURL("policy", "device-admin", "policy-set"), nil, nil, &envelope); err != nil {
		return "", err
	}

	for _, ps := range envelope.Response {
		if ps.Name == name {
			c.log.Info("resolved policy set", "name", name, "id", ps.ID)
			return ps.ID, nil
		}
	}
	return "", fmt.Errorf("policy set %q: %w", name, ErrNotFound)
}

// FindShellProfile looks up a TACACS shell profile by name.
func (c *Client) FindShellProfile(ctx context.Context, name string) (*ShellProfile, error) {
	var profiles []ShellProfile
	if err := c.do(ctx, http.MethodGet, c.openAPIURL("policy", "device-admin", "shell-profiles"), nil, nil, &profiles); err != nil {
		return nil, err
	}

	for i := range profiles {
		if profiles[i].Name == name {
			c.log.Info("resolved shell profile", "name", name)
			return &profiles[i], nil
		}
	}
	return nil, fmt.Errorf("shell profile %q: %w", name, ErrNotFound)
}

// FindCommandSets returns the subset of the requested command set names that
// exist remotely, preserving the requested order. The caller decides whether
// a partial match is fatal.
func (c *Client) FindCommandSets(ctx context.Context, names []string) ([]string, error) {
	var sets []CommandSet
	if err := c.do(ctx, http.MethodGet, c.openAPIURL("policy", "device-admin", "command-sets"), nil, nil, &sets); err != nil {
		return nil, err
	}

	existing := make(map[string]bool, len(sets))
	for _, cs := range sets {
		existing[cs.Name] = true
	}

	var matched []string
	for _, name := range names {
		if existing[name] {
			matched = append(matched, name)
		}
	}
	c.log.Info("matched command sets", "requested", names, "matched", matched)
	return matched, nil
}

// GetAuthorizationRules lists the authorization rules of a policy set and
// returns a name-to-id map of the override rules this bridge manages.
func (c *Client) GetAuthorizationRules(ctx context.Context, policyID string) (map[string]string, error) {
	var envelope openAPIAuthRules
	if err := c.do(ctx, http.MethodGet, c.openAPIURL("policy", "device-admin", "policy-set", policyID, "authorization"), nil, nil, &envelope); err != nil {
		return nil, err
	}

	rules := make(map[string]string)
	for _, item := range envelope.Response {
		if strings.Contains(item.Rule.Name, rule.OverrideMarker) {
			rules[item.Rule.Name] = item.Rule.ID
		}
	}
	return rules, nil
}

// FindNetworkDevices searches ERS network devices with a filter expression
// such as "ipaddress.EQ.10.0.0.5". An empty search result is ErrNotFound.
func (c *Client) FindNetworkDevices(ctx context.Context, filter string) ([]NetworkDevice, error) {
	query := url.Values{"filter": []string{filter}}

	var result ersSearchResult
	if err := c.do(ctx, http.MethodGet, c.ersURL("networkdevice"), query, nil, &result); err != nil {
		return nil, err
	}

	if result.SearchResult.Total == 0 {
		return nil, fmt.Errorf("network device matching %q: %w", filter, ErrNotFound)
	}
	c.log.Info("matched network devices", "filter", filter, "total", result.SearchResult.Total)
	return result.SearchResult.Resources, nil
}

// createRuleBody binds the rendered rule document to the process-wide
// command sets and shell profile.
type createRuleBody struct {
	Commands []string   `json:"commands"`
	Profile  string     `json:"profile"`
	Rule     *rule.Rule `json:"rule"`
}

// CreateAuthorizationRule posts a new authorization rule to the policy set
// and returns the remote reference (name and assigned id).
func (c *Client) CreateAuthorizationRule(ctx context.Context, policyID string, doc *rule.Rule, profile string, commands []string) (RuleRef, error) {
	body := createRuleBody{
		Commands: commands,
		Profile:  profile,
		Rule:     doc,
	}

	var envelope openAPIAuthRule
	if err := c.do(ctx, http.MethodPost, c.openAPIURL("policy", "device-admin", "policy-set", policyID, "authorization"), nil, body, &envelope); err != nil {
		return RuleRef{}, err
	}

	created := envelope.Response.Rule
	c.log.Info("created authorization rule", "name", created.Name, "id", created.ID)
	return created, nil
}

// DeleteAuthorizationRule removes an authorization rule by its remote id.
func (c *Client) DeleteAuthorizationRule(ctx context.Context, policyID, ruleID string) error {
	if err := c.do(ctx, http.MethodDelete, c.openAPIURL("policy", "device-admin", "policy-set", policyID, "authorization", ruleID), nil, nil, nil); err != nil {
		return err
	}
	c.log.Info("deleted authorization rule", "id", ruleID)
	return nil
}
