package client

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/adit-codes/vyuhathon-final-health-monitoring/form"
)

// EndpointID names one backend webhook.
type EndpointID string

const (
	DoctorConfig      EndpointID = "doctor-config"
	WorkflowManual    EndpointID = "workflow-x-manual"
	WorkflowAI        EndpointID = "workflow-y-ai"
	PatientParams     EndpointID = "get-patient-params"
	WorkflowSchema    EndpointID = "workflow-z"
	ProcessSubmission EndpointID = "process-submission"
	SubmitData        EndpointID = "submit-data"
)

// DefaultBaseURL is the placeholder webhook root used when none is configured.
const DefaultBaseURL = "https://your-n8n-instance.com/webhook"

var allEndpoints = []EndpointID{
	DoctorConfig, WorkflowManual, WorkflowAI, PatientParams, WorkflowSchema, ProcessSubmission, SubmitData,
}

// AllEndpoints lists every known endpoint.
func AllEndpoints() []EndpointID {
	out := make([]EndpointID, len(allEndpoints))
	copy(out, allEndpoints)
	return out
}

// ReadOnly endpoints fetch data and are safe to retry.
func (e EndpointID) ReadOnly() bool {
	return e == PatientParams || e == WorkflowSchema
}

// ExpectsJSON endpoints must answer with a JSON document.
func (e EndpointID) ExpectsJSON() bool {
	return e.ReadOnly()
}

func (e EndpointID) String() string {
	return string(e)
}

var actionEndpoints = map[form.Action]EndpointID{
	form.ActionRegister:    DoctorConfig,
	form.ActionManualSetup: WorkflowManual,
	form.ActionAISetup:     WorkflowAI,
	form.ActionLookup:      PatientParams,
	form.ActionFetchSchema: WorkflowSchema,
	form.ActionSubmitAll:   ProcessSubmission,
	form.ActionSubmitField: SubmitData,
}

// EndpointFor maps a payload action to its webhook.
func EndpointFor(action form.Action) (EndpointID, bool) {
	id, ok := actionEndpoints[action]
	return id, ok
}

// Endpoints resolves endpoint ids to absolute URLs.
type Endpoints map[EndpointID]string

// DefaultEndpoints joins every endpoint id onto baseURL.
func DefaultEndpoints(baseURL string) Endpoints {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	out := make(Endpoints, len(allEndpoints))
	for _, id := range allEndpoints {
		out[id] = baseURL + "/" + string(id)
	}
	return out
}

// With returns a copy with the non-empty overrides applied.
func (e Endpoints) With(overrides map[EndpointID]string) Endpoints {
	out := make(Endpoints, len(e)+len(overrides))
	for k, v := range e {
		out[k] = v
	}
	for k, v := range overrides {
		if v = strings.TrimSpace(v); v != "" {
			out[k] = v
		}
	}
	return out
}

func (e Endpoints) URL(id EndpointID) (string, error) {
	raw, ok := e[id]
	if !ok || strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("endpoint %s not configured", id)
	}
	return raw, nil
}

// Validate checks every configured URL is absolute http(s).
func (e Endpoints) Validate() error {
	for _, id := range allEndpoints {
		raw, err := e.URL(id)
		if err != nil {
			return err
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("endpoint %s: %w", id, err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("endpoint %s: %q is not an absolute http url", id, raw)
		}
	}
	return nil
}
