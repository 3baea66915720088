// Package gate is the single capability checkpoint the workflow services
// consult before allowing a transition. A user resolves to a Profile (a
// named set of capabilities); the concrete role-to-capability mapping is
// supplied by the policy package, keeping this package free of domain
// models so it can be reused across portal services.
//
// The package uses generics to allow any user/subject type:
//   - Gate[uint] for simple user ID based auth
//   - Gate[*User] for full user struct based auth
package gate

import "strings"

// Capability names an allowed workflow transition.
// Format: "resource:action" (e.g. "draft:approve", "proposal:countersign").
type Capability string

// Workflow capabilities consumed by the draft and proposal services.
const (
	CapDraftSubmit         Capability = "draft:submit"
	CapDraftApprove        Capability = "draft:approve"
	CapDraftReject         Capability = "draft:reject"
	CapDraftConvert        Capability = "draft:convert"
	CapProposalSend        Capability = "proposal:send"
	CapProposalCountersign Capability = "proposal:countersign"
)

// Wildcards for super capabilities.
const (
	WildcardAll               = "*"
	CapabilityAll  Capability = "*:*"
)

// Parse splits a capability into resource and action parts.
func (c Capability) Parse() (resource, action string) {
	parts := strings.SplitN(string(c), ":", 2)
	if len(parts) != 2 {
		return "", ""
	}
	return parts[0], parts[1]
}

// Matches checks whether this capability grants the requested one.
// Supports wildcards: "*:*" matches everything, "draft:*" matches all
// draft actions.
func (c Capability) Matches(requested Capability) bool {
	if c == CapabilityAll {
		return true
	}
	if c == requested {
		return true
	}
	res, act := c.Parse()
	reqRes, _ := requested.Parse()
	return res == reqRes && act == WildcardAll
}
