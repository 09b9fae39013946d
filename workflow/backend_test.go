package workflow_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/adit-codes/vyuhathon-final-health-monitoring/client"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/flow"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/identity"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/session"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/workflow"
)

type reply struct {
	status int
	body   string
}

type call struct {
	Endpoint client.EndpointID
	Body     map[string]any
}

// fakeN8N stands in for the automation backend: every webhook answers
// 200 {"status":"ok"} unless told otherwise.
type fakeN8N struct {
	mu      sync.Mutex
	srv     *httptest.Server
	replies map[client.EndpointID]reply
	calls   []call

	// onCall runs after the request is recorded and before the reply.
	onCall func(client.EndpointID)
}

func newFakeN8N(t testing.TB) *fakeN8N {
	t.Helper()
	b := &fakeN8N{replies: map[client.EndpointID]reply{}}
	b.srv = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.srv.Close)
	return b
}

func (b *fakeN8N) serve(w http.ResponseWriter, r *http.Request) {
	endpoint := client.EndpointID(strings.TrimPrefix(r.URL.Path, "/"))
	raw, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)

	b.mu.Lock()
	b.calls = append(b.calls, call{Endpoint: endpoint, Body: body})
	rep, ok := b.replies[endpoint]
	hook := b.onCall
	b.mu.Unlock()

	if hook != nil {
		hook(endpoint)
	}
	if !ok {
		rep = reply{status: http.StatusOK, body: `{"status":"ok"}`}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rep.status)
	_, _ = io.WriteString(w, rep.body)
}

func (b *fakeN8N) reply(endpoint client.EndpointID, status int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.replies[endpoint] = reply{status: status, body: body}
}

func (b *fakeN8N) onRequest(fn func(client.EndpointID)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onCall = fn
}

func (b *fakeN8N) callsTo(endpoint client.EndpointID) []call {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []call
	for _, c := range b.calls {
		if c.Endpoint == endpoint {
			out = append(out, c)
		}
	}
	return out
}

func (b *fakeN8N) totalCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

var fixedNow = time.Date(2026, 10, 17, 8, 30, 0, 0, time.UTC)

func newController(t testing.TB, b *fakeN8N, opts ...workflow.Option) (*workflow.Controller, *session.Store[workflow.State]) {
	t.Helper()
	store := session.New[workflow.State](flow.NewInMemoryStateStore())
	opts = append([]workflow.Option{
		workflow.WithIdentityGenerator(identity.NewGenerator(identity.WithClock(func() time.Time { return fixedNow }))),
	}, opts...)
	ctrl, err := workflow.NewController(store, client.New(client.DefaultEndpoints(b.srv.URL)), opts...)
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	return ctrl, store
}
