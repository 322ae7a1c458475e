package model

const (
	AppName = "bootorder"

	// Intersight resource paths this application touches.
	OrganizationsPath = "/organization/Organizations"
	BootPolicyPath    = "/boot/PrecisionPolicies"
)

// State is the requested lifecycle state for a policy.
type State string

const (
	StatePresent State = "present"
	StateAbsent  State = "absent"
)

// Document is a decoded Intersight JSON object.
type Document map[string]any

// Moid returns the server assigned identifier of the document, if any.
func (d Document) Moid() string {
	if d == nil {
		return ""
	}

	moid, _ := d["Moid"].(string)

	return moid
}

type Args struct {
	LogLevel        string
	ConfigFile      string
	PolicyFile      string
	EnableProfiling bool
	DryRun          bool
	Check           bool
}
