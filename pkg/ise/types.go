package ise

// PolicySet is a named collection of authorization rules on the policy engine.
type PolicySet struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ShellProfile defines the shell scope granted to a matched session.
type ShellProfile struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// CommandSet defines the command scope granted to a matched session.
type CommandSet struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// NetworkDevice is a managed device record from the ERS API.
type NetworkDevice struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RuleRef identifies an authorization rule on the remote system.
type RuleRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// openAPIPolicySets is the list envelope of the OpenAPI policy-set endpoint.
type openAPIPolicySets struct {
	Response []PolicySet `json:"response"`
}

// openAPIAuthRules is the list envelope of the authorization endpoint; each
// entry wraps the rule document alongside its profile and command sets.
type openAPIAuthRules struct {
	Response []authRuleItem `json:"response"`
}

type authRuleItem struct {
	Rule RuleRef `json:"rule"`
}

// openAPIAuthRule is the envelope of a single created authorization rule.
type openAPIAuthRule struct {
	Response authRuleItem `json:"response"`
}

// ersSearchResult is the ERS API search envelope.
type ersSearchResult struct {
	SearchResult struct {
		Total     int             `json:"total"`
		Resources []NetworkDevice `json:"resources"`
	} `json:"SearchResult"`
}
