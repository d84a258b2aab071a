// Package webhook fabricates the provider event a downstream consumer would
// receive for a newly opened pull request.
package webhook

import (
	"context"
	"encoding/json"

	"prsmoke/internal"
)

// Payload mirrors the provider's pull request event: exactly the raw pull
// request and repository API responses, nothing else.
type Payload struct {
	PullRequest json.RawMessage `json:"pullrequest"`
	Repository  json.RawMessage `json:"repository"`
}

// Simulate delivers the fabricated event to the receiver. With the http
// delivery driver the receiver URL is the delivery topic.
func Simulate(ctx context.Context, pub internal.Publisher, receiverURL string, pullRequest, repository json.RawMessage) error {
	payload, err := json.Marshal(Payload{
		PullRequest: pullRequest,
		Repository:  repository,
	})
	if err != nil {
		return err
	}
	return pub.Publish(ctx, receiverURL, payload)
}
