// Package medical holds the health complaints a malfunction can inflict on
// settlers. Treatment and recovery are handled by the medical subsystem
// proper; this package only models the assignment.
package medical

// Well-known complaint names used by malfunction templates. Templates may
// reference complaints outside this list; the name is the identity.
const (
	ComplaintMinorBurns      = "minor burns"
	ComplaintBurns           = "burns"
	ComplaintLacerations     = "lacerations"
	ComplaintBrokenBone      = "broken bone"
	ComplaintSuffocation     = "suffocation"
	ComplaintFrostbite       = "frostbite"
	ComplaintRadiationPoison = "radiation sickness"
)

// Complaint is a single health problem assigned to a person.
type Complaint struct {
	Name string `json:"name"`

	// IncidentID references the malfunction that caused this complaint,
	// zero if it arose some other way.
	IncidentID int64 `json:"incident_id,omitempty"`

	// Sol records when the complaint started.
	Sol int `json:"sol"`
}
