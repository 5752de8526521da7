package hcloud

import (
	"errors"
	"slices"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// transientCodes are API error codes that clear up on their own: a running
// action holds the resource, or the project is being throttled.
var transientCodes = []hcloud.ErrorCode{
	hcloud.ErrorCodeLocked,
	hcloud.ErrorCodeConflict,
	hcloud.ErrorCodeResourceLocked,
	hcloud.ErrorCodeResourceUnavailable,
	hcloud.ErrorCodeRateLimitExceeded,
}

// rejectedCodes mean the request itself is wrong; repeating it cannot help.
var rejectedCodes = []hcloud.ErrorCode{
	hcloud.ErrorCodeNotFound,
	hcloud.ErrorCodeInvalidInput,
	hcloud.ErrorCodeInvalidServerType,
	hcloud.ErrorCodeUniquenessError,
}

func apiErrorCode(err error) (hcloud.ErrorCode, bool) {
	var apiErr hcloud.Error
	if err == nil || !errors.As(err, &apiErr) {
		return "", false
	}
	return apiErr.Code, true
}

func hasCode(err error, codes ...hcloud.ErrorCode) bool {
	code, ok := apiErrorCode(err)
	return ok && slices.Contains(codes, code)
}

// isTransient reports whether a failed call is worth retrying.
func isTransient(err error) bool {
	return hasCode(err, transientCodes...)
}

// isRejected reports whether the API refused the request as malformed or
// conflicting with existing state.
func isRejected(err error) bool {
	return hasCode(err, rejectedCodes...)
}

// IsNotFound reports whether the API answered not_found.
func IsNotFound(err error) bool {
	return hasCode(err, hcloud.ErrorCodeNotFound)
}

// IsUniquenessError reports whether a resource with the same name or
// content already exists.
func IsUniquenessError(err error) bool {
	return hasCode(err, hcloud.ErrorCodeUniquenessError)
}
