// Package rule builds ISE device-admin authorization rule documents.
//
// The remote policy engine matches a TACACS session against a condition
// tree of attribute comparisons. This package produces the fixed
// "read/write override" rule shape: an AND of the user's LDAP first and
// last name plus the target device IP.
package rule

import (
	"fmt"
	"strings"
)

// Condition types understood by the ISE OpenAPI rule schema.
const (
	TypeAndBlock   = "ConditionAndBlock"
	TypeOrBlock    = "ConditionOrBlock"
	TypeAttributes = "ConditionAttributes"
)

// Dictionaries and attributes referenced by the override rule.
const (
	dictLDAP          = "LLDAP"
	attrGivenName     = "givenname"
	attrSurname       = "sn"
	dictNetworkAccess = "Network Access"
	attrDeviceIP      = "Device IP Address"

	opEquals   = "equals"
	opIPEquals = "ipEquals"
)

// OverrideMarker tags every rule managed by this bridge. Rules without it
// in their name are ignored when seeding the active-rule registry.
const OverrideMarker = "rw_override"

// Condition is a node in the rule's condition tree: either a Block
// (AND/OR over children) or an Attribute comparison.
type Condition interface {
	conditionNode()
}

// Block is an AND/OR condition over child conditions.
type Block struct {
	Link          any         `json:"link"`
	ConditionType string      `json:"conditionType"`
	IsNegate      bool        `json:"isNegate"`
	Children      []Condition `json:"children"`
}

// Attribute is a single dictionary-attribute comparison.
type Attribute struct {
	Link            any    `json:"link"`
	ConditionType   string `json:"conditionType"`
	IsNegate        bool   `json:"isNegate"`
	DictionaryName  string `json:"dictionaryName"`
	AttributeName   string `json:"attributeName"`
	Operator        string `json:"operator"`
	DictionaryValue any    `json:"dictionaryValue"`
	AttributeValue  string `json:"attributeValue"`
}

func (*Block) conditionNode()     {}
func (*Attribute) conditionNode() {}

// Rule is the authorization rule document posted to the policy engine.
type Rule struct {
	Condition Condition `json:"condition"`
	Default   bool      `json:"default"`
	Name      string    `json:"name"`
	Rank      int       `json:"rank"`
	State     string    `json:"state"`
}

// SplitAssignee splits an assignee's full name into first and last name.
// Anything other than exactly two whitespace-separated tokens is rejected:
// the LDAP condition needs an unambiguous givenname/sn pair.
func SplitAssignee(assignee string) (first, last string, err error) {
	tokens := strings.Fields(assignee)
	if len(tokens) != 2 {
		return "", "", fmt.Errorf("assignee %q must be exactly two name tokens (first and last name), got %d", assignee, len(tokens))
	}
	return tokens[0], tokens[1], nil
}

// Name derives the unique override rule name for an assignee+IP pair.
func Name(assignee, ip string) string {
	return fmt.Sprintf("%s_%s-%s", assignee, OverrideMarker, ip)
}

func attr(dictionary, attribute, operator, value string) *Attribute {
	return &Attribute{
		ConditionType:  TypeAttributes,
		DictionaryName: dictionary,
		AttributeName:  attribute,
		Operator:       operator,
		AttributeValue: value,
	}
}

// Build assembles the override rule for a user and one or more device IPs.
// Multiple IPs become an OR block nested inside the top-level AND; the
// webhook path only ever supplies one.
func Build(firstName, lastName string, ips []string, name string) (*Rule, error) {
	if firstName == "" || lastName == "" {
		return nil, fmt.Errorf("first and last name are required")
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("at least one device ip is required")
	}

	children := []Condition{
		attr(dictLDAP, attrGivenName, opEquals, firstName),
		attr(dictLDAP, attrSurname, opEquals, lastName),
	}

	if len(ips) == 1 {
		children = append(children, attr(dictNetworkAccess, attrDeviceIP, opIPEquals, ips[0]))
	} else {
		alternatives := make([]Condition, 0, len(ips))
		for _, ip := range ips {
			alternatives = append(alternatives, attr(dictNetworkAccess, attrDeviceIP, opIPEquals, ip))
		}
		children = append(children, &Block{
			ConditionType: TypeOrBlock,
			Children:      alternatives,
		})
	}

	return &Rule{
		Condition: &Block{
			ConditionType: TypeAndBlock,
			Children:      children,
		},
		Name:  name,
		Rank:  0,
		State: "enabled",
	}, nil
}
