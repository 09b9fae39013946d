package client

import (
	"context"

	"github.com/adit-codes/vyuhathon-final-health-monitoring/form"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/schema"
)

// Fetched is a normalized schema with the warnings raised while reading it.
type Fetched struct {
	Schema   schema.FormSchema
	Warnings []schema.Warning
	Response Response
}

// SchemaFetcher sends a lookup or schema request and normalizes the reply.
// Submission errors and schema errors keep their own codes so callers can
// tell a failed call from a reply without parameters.
type SchemaFetcher struct {
	sender     Sender
	normalizer *schema.Normalizer
}

func NewSchemaFetcher(sender Sender, normalizer *schema.Normalizer) *SchemaFetcher {
	if normalizer == nil {
		normalizer = schema.NewNormalizer(nil)
	}
	return &SchemaFetcher{sender: sender, normalizer: normalizer}
}

func (f *SchemaFetcher) Fetch(ctx context.Context, endpoint EndpointID, payload form.Payload) (Fetched, error) {
	resp, err := f.sender.Send(ctx, endpoint, payload)
	if err != nil {
		return Fetched{}, err
	}
	out, warnings, err := f.normalizer.NormalizeJSON(resp.Body)
	if err != nil {
		return Fetched{Response: resp}, err
	}
	return Fetched{Schema: out, Warnings: warnings, Response: resp}, nil
}
