package aws

import (
	"errors"
	"net/http"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/smithy-go"

	"github.com/de-tools/inventory-atlas/pkg/models/domain"
	"github.com/de-tools/inventory-atlas/pkg/providers"
)

var (
	authCodes = map[string]bool{
		"AuthFailure":                 true,
		"InvalidClientTokenId":        true,
		"SignatureDoesNotMatch":       true,
		"UnrecognizedClientException": true,
		"InvalidAccessKeyId":          true,
	}
	expiredCodes = map[string]bool{
		"ExpiredToken":          true,
		"ExpiredTokenException": true,
		"RequestExpired":        true,
	}
	unavailableCodes = map[string]bool{
		"UnauthorizedOperation": true,
		"AccessDenied":          true,
		"AccessDeniedException": true,
		"OptInRequired":         true,
		"UnsupportedOperation":  true,
		"InvalidAction":         true,
	}
	transientCodes = map[string]bool{
		"Throttling":               true,
		"ThrottlingException":      true,
		"RequestLimitExceeded":     true,
		"TooManyRequestsException": true,
		"ServiceUnavailable":       true,
		"InternalError":            true,
		"RequestTimeout":           true,
		"SlowDown":                 true,
	}
)

// classify maps an SDK error to a provider error category by API error code,
// falling back to the HTTP status.
func classify(err error, resourceType domain.ResourceType) error {
	if err == nil {
		return nil
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		switch {
		case authCodes[code]:
			return providers.AuthenticationFailure(domain.ProviderAWS, code, err)
		case expiredCodes[code]:
			return providers.SessionExpired(domain.ProviderAWS, resourceType, err)
		case unavailableCodes[code]:
			return providers.Unavailable(domain.ProviderAWS, resourceType, code, err)
		case transientCodes[code]:
			return providers.Transient(domain.ProviderAWS, resourceType, code, err)
		}
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		status := respErr.HTTPStatusCode()
		switch {
		case status == http.StatusUnauthorized:
			return providers.SessionExpired(domain.ProviderAWS, resourceType, err)
		case status == http.StatusForbidden || status == http.StatusNotImplemented:
			return providers.Unavailable(domain.ProviderAWS, resourceType, http.StatusText(status), err)
		}
	}

	return providers.Transient(domain.ProviderAWS, resourceType, "provider call failed", err)
}
