package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-automata/internal/step"
)

// Response carries the body returned by the webhook endpoint.
var Response = step.Point("response")

// Defaults applied when decoding a webhook without the field.
const (
	defaultWebhookMethod = http.MethodPost
	webhookContentType   = "text/plain; charset=utf-8"

	// maxResponseBytes caps how much of the endpoint's answer is kept.
	maxResponseBytes = 1 << 20
)

// WebhookAction sends the interpolated payload to a URL and proceeds
// with the response body as its only data point. The body is read for
// any status code.
type WebhookAction struct {
	id      uuid.UUID
	url     string
	method  string
	payload string
}

// NewWebhookAction creates a webhook action. The payload is a pattern
// whose {{name}} tokens are filled from the step data.
func NewWebhookAction(id uuid.UUID, url, method, payload string) WebhookAction {
	return WebhookAction{id: id, url: url, method: method, payload: payload}
}

func (a WebhookAction) ID() uuid.UUID               { return a.id }
func (a WebhookAction) Descriptor() step.Descriptor { return WebhookFactory }

// URL returns the target URL.
func (a WebhookAction) URL() string { return a.url }

// Method returns the HTTP method.
func (a WebhookAction) Method() string { return a.method }

// Payload returns the body pattern.
func (a WebhookAction) Payload() string { return a.payload }

// sendsBody reports whether the method carries a request body.
func sendsBody(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}

// Fire performs the request. Transport failures are returned as errors;
// any HTTP response, including 4xx and 5xx, proceeds.
func (a WebhookAction) Fire(ctx context.Context, env step.Env, data step.Data) (step.Result, error) {
	method := strings.ToUpper(a.method)
	if method == "" {
		method = defaultWebhookMethod
	}

	var body io.Reader
	if sendsBody(method) {
		body = strings.NewReader(data.Interpolate(a.payload))
	}

	req, err := http.NewRequestWithContext(ctx, method, a.url, body)
	if err != nil {
		return nil, fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", webhookContentType)

	resp, err := env.HTTPClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling webhook: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading webhook response: %w", err)
	}

	return step.Proceed{Data: step.NewData(map[step.DataPoint]string{Response: string(respBody)})}, nil
}

// Issues is always empty; the network is assumed.
func (a WebhookAction) Issues(step.Env) []step.Issue {
	return nil
}

type webhookFactory struct{}

// WebhookFactory builds and serialises WebhookAction.
var WebhookFactory step.Factory[step.Action] = webhookFactory{}

type webhookBody struct {
	UUID    string  `json:"uuid"`
	URL     *string `json:"url"`
	Method  *string `json:"method"`
	Payload *string `json:"payload"`
}

func (webhookFactory) Name() string          { return "Send webhook call" }
func (webhookFactory) Discriminator() string { return "WebhookAction" }

func (webhookFactory) Produces() []step.DataPoint {
	return []step.DataPoint{Response}
}

func (webhookFactory) Dummy() step.Action {
	return NewWebhookAction(uuid.New(), "https://", http.MethodGet, "")
}

func (webhookFactory) Encode(s step.Action) ([]byte, error) {
	a, ok := s.(WebhookAction)
	if !ok {
		return nil, step.ErrWrongType
	}
	return json.Marshal(webhookBody{
		UUID:    a.id.String(),
		URL:     &a.url,
		Method:  &a.method,
		Payload: &a.payload,
	})
}

func (webhookFactory) Decode(raw []byte) (step.Action, error) {
	var body webhookBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}
	id, err := step.ParseID(body.UUID)
	if err != nil {
		return nil, err
	}
	return NewWebhookAction(id,
		orDefault(body.URL, ""),
		orDefault(body.Method, defaultWebhookMethod),
		orDefault(body.Payload, ""),
	), nil
}

func orDefault(v *string, def string) string {
	if v == nil {
		return def
	}
	return *v
}
