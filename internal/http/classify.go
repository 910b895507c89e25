package http

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fivetwenty-io/wikijs/internal/constants"
	"github.com/fivetwenty-io/wikijs/pkg/wikijs"
	"github.com/hashicorp/go-retryablehttp"
)

// ClassifyResponse maps an error status to an APIError.
func ClassifyResponse(statusCode int, header http.Header, body []byte, now time.Time) *wikijs.APIError {
	apiErr := &wikijs.APIError{
		StatusCode: statusCode,
		Message:    errorMessage(statusCode, body),
	}

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		apiErr.Class = wikijs.ClassAuth
	case statusCode == http.StatusNotFound:
		apiErr.Class = wikijs.ClassNotFound
	case statusCode == http.StatusTooManyRequests:
		apiErr.Class = wikijs.ClassRateLimited
		apiErr.RetryAfter = ParseRetryAfter(header.Get("Retry-After"), now)
	case statusCode >= http.StatusInternalServerError:
		apiErr.Class = wikijs.ClassTransientServer
		apiErr.RetryAfter = ParseRetryAfter(header.Get("Retry-After"), now)
	default:
		apiErr.Class = wikijs.ClassClient
	}

	return apiErr
}

// ClassifyTransportError wraps a failure that produced no response. The
// retryablehttp default policy decides which transport errors are worth
// another attempt: bad schemes, redirect loops and certificate errors are not.
func ClassifyTransportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &wikijs.APIError{Class: wikijs.ClassTransientNetwork, Message: ctxErr.Error(), Err: errors.Join(ctxErr, err)}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &wikijs.APIError{Class: wikijs.ClassTransientNetwork, Err: err}
	}

	retry, _ := retryablehttp.DefaultRetryPolicy(ctx, nil, err)
	if !retry {
		return &wikijs.APIError{Class: wikijs.ClassClient, Err: err}
	}

	return &wikijs.APIError{Class: wikijs.ClassTransientNetwork, Err: err}
}

// ParseRetryAfter reads a Retry-After header given either as delay seconds or
// as an HTTP date. Unparseable, past and non-positive values yield zero.
func ParseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds <= 0 {
			return 0
		}

		return min(time.Duration(seconds)*time.Second, constants.MaxRetryAfter)
	}

	if t, err := http.ParseTime(value); err == nil {
		delay := t.Sub(now)
		if delay <= 0 {
			return 0
		}

		return min(delay, constants.MaxRetryAfter)
	}

	return 0
}

func errorMessage(statusCode int, body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Errors  []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}

	if json.Unmarshal(body, &payload) == nil {
		if len(payload.Errors) > 0 && payload.Errors[0].Message != "" {
			return payload.Errors[0].Message
		}

		if payload.Message != "" {
			return payload.Message
		}
	}

	return http.StatusText(statusCode)
}
