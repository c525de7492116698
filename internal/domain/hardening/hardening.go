// Package hardening builds the OS firewall command strings that block
// outbound network access for the tool worker executable. Nothing here
// executes anything: the commands are printed for the user (or an
// elevated helper) to run out-of-band.
package hardening

import "fmt"

// RuleName is the fixed firewall rule name the commands manage.
const RuleName = "NeroAI Tool Runner - Block Outbound"

// Commands holds the rendered firewall command strings.
type Commands struct {
	// Add creates the outbound-block rule for the worker program.
	Add string
	// Delete removes any prior rule of the same name, making Add
	// idempotent when run after it.
	Delete string
	// Status queries the rule's current state.
	Status string
}

// Build renders the netsh advfirewall commands for the given worker
// executable path.
func Build(programPath string) Commands {
	return Commands{
		Delete: fmt.Sprintf(`netsh advfirewall firewall delete rule name="%s"`, RuleName),
		Add: fmt.Sprintf(
			`netsh advfirewall firewall add rule name="%s" dir=out action=block program="%s" enable=yes profile=any`,
			RuleName, programPath),
		Status: fmt.Sprintf(
			`netsh advfirewall firewall show rule name="%s" verbose`, RuleName),
	}
}
