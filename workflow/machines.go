package workflow

import (
	"context"
	_ "embed"
	"fmt"

	monitoring "github.com/adit-codes/vyuhathon-final-health-monitoring"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/flow"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/form"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/schema"
)

//go:embed machines.yaml
var machinesYAML []byte

// Subject is what guards and target resolvers see.
type Subject struct {
	State   State
	Event   Event
	Outcome Outcome
}

// Outcome is the result of the external call (or local work) performed by
// one handling pass, fed into Reduce.
type Outcome struct {
	Identity       *form.PatientIdentity
	Identification *form.Identification
	Schema         schema.FormSchema
	Warnings       []schema.Warning
	// Captured replaces the patient's captured values when set.
	Captured map[string]form.CapturedValue
	// SchemaErr records why a lookup reply carried no usable schema.
	SchemaErr error
}

// Guard and resolver names referenced from machines.yaml.
const (
	GuardIdentityPresent       = "identity_present"
	GuardManualSelected        = "manual_selected"
	GuardIdentificationPresent = "identification_present"
	GuardSchemaPresent         = "schema_present"

	ResolverLookupOutcome = "lookup_outcome"
)

// Resolvers returns the guards and dynamic targets the machines use.
func Resolvers() *flow.ResolverMap[Subject] {
	r := flow.NewResolverMap[Subject]()
	r.RegisterPredicate(GuardIdentityPresent, "no registered patient", func(s Subject) bool {
		return s.State.Doctor.Identity != nil
	})
	r.RegisterPredicate(GuardManualSelected, "manual setup not selected", func(s Subject) bool {
		return s.State.Doctor.Setup == SetupManual
	})
	r.RegisterPredicate(GuardIdentificationPresent, "patient not identified", func(s Subject) bool {
		return s.State.Patient.Identification != nil
	})
	r.RegisterPredicate(GuardSchemaPresent, "no parameter schema loaded", func(s Subject) bool {
		return len(s.State.Patient.Widgets) > 0
	})
	r.RegisterDynamicTarget(ResolverLookupOutcome, func(_ context.Context, s Subject) (string, error) {
		if len(s.Outcome.Schema) > 0 {
			return string(StepFormReady), nil
		}
		return string(StepSchemaPending), nil
	})
	return r
}

// LoadMachines parses machines.yaml and compiles one machine per role.
func LoadMachines(opts ...flow.MachineOption[Subject]) (map[monitoring.Role]*flow.Machine[Subject], error) {
	set, err := flow.ParseMachineSet(machinesYAML)
	if err != nil {
		return nil, fmt.Errorf("parse machines: %w", err)
	}
	built, err := flow.BuildMachines(set, Resolvers(), opts...)
	if err != nil {
		return nil, err
	}
	out := make(map[monitoring.Role]*flow.Machine[Subject], len(built))
	for _, role := range []monitoring.Role{monitoring.RoleDoctor, monitoring.RolePatient} {
		m, ok := built[string(role)]
		if !ok {
			return nil, fmt.Errorf("no machine for role %s", role)
		}
		out[role] = m
	}
	return out, nil
}
