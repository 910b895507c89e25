package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fivetwenty-io/wikijs/internal/constants"
	"github.com/fivetwenty-io/wikijs/internal/http"
	"github.com/fivetwenty-io/wikijs/pkg/wikijs"
)

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphQLError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// responseResult is the status block Wiki.js attaches to every mutation.
type responseResult struct {
	Succeeded bool   `json:"succeeded"`
	ErrorCode int    `json:"errorCode"`
	Slug      string `json:"slug"`
	Message   string `json:"message"`
}

// graphQL posts a query and decodes its data into out. Transport errors come
// back already classified by the HTTP client.
func (c *Client) graphQL(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error {
	resp, err := c.httpClient.Post(ctx, constants.GraphQLPath, &graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return err
	}

	return decodeGraphQL(resp, out)
}

func decodeGraphQL(resp *http.Response, out interface{}) error {
	var envelope graphQLResponse

	if err := json.Unmarshal(resp.Body, &envelope); err != nil {
		return &wikijs.APIError{
			Class:      wikijs.ClassTransientServer,
			StatusCode: resp.StatusCode,
			Message:    "malformed GraphQL response",
			Err:        err,
		}
	}

	if len(envelope.Errors) > 0 {
		return classifyGraphQLErrors(envelope.Errors)
	}

	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return &wikijs.APIError{Class: wikijs.ClassTransientServer, Message: constants.ErrEmptyResponse.Error(), Err: constants.ErrEmptyResponse}
	}

	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return &wikijs.APIError{Class: wikijs.ClassTransientServer, Message: "decoding GraphQL data", Err: err}
	}

	return nil
}

func classifyGraphQLErrors(errs []graphQLError) error {
	first := errs[0]

	messages := make([]string, 0, len(errs))
	for _, e := range errs {
		messages = append(messages, e.Message)
	}

	apiErr := &wikijs.APIError{
		Code:    first.Extensions.Code,
		Message: strings.Join(messages, "; "),
	}

	switch first.Extensions.Code {
	case "UNAUTHENTICATED", "FORBIDDEN":
		apiErr.Class = wikijs.ClassAuth
	case "NOT_FOUND":
		apiErr.Class = wikijs.ClassNotFound
	case "INTERNAL_SERVER_ERROR":
		apiErr.Class = wikijs.ClassTransientServer
	default:
		apiErr.Class = wikijs.ClassClient
	}

	return apiErr
}

// check turns a failed responseResult into an APIError. Wiki.js slugs end in
// NotFound for missing resources and start with Auth for permission errors.
func (r *responseResult) check(action string) error {
	if r == nil {
		return &wikijs.APIError{Class: wikijs.ClassTransientServer, Message: action + ": " + constants.ErrMissingData.Error(), Err: constants.ErrMissingData}
	}

	if r.Succeeded {
		return nil
	}

	apiErr := &wikijs.APIError{
		Code:    r.Slug,
		Message: fmt.Sprintf("%s: %s", action, r.Message),
		Err:     constants.ErrOperationFailed,
	}

	switch {
	case strings.HasSuffix(r.Slug, "NotFound"):
		apiErr.Class = wikijs.ClassNotFound
	case strings.HasPrefix(r.Slug, "Auth"), strings.Contains(r.Slug, "Unauthorized"), strings.Contains(r.Slug, "Forbidden"):
		apiErr.Class = wikijs.ClassAuth
	default:
		apiErr.Class = wikijs.ClassClient
	}

	return apiErr
}
