// Package envelope wraps response bodies in the standard Shovel JSON envelope:
//
//	{"meta":{"code":200,"status":"success","message":"OK"},"data":...}
//
// Pagination metadata is nested inside the meta block when the body was
// produced from a paginated result. Key names are configurable through Tags.
package envelope

import (
	"net/http"
	"strconv"
)

const (
	// StatusSuccess labels every status code outside the 4xx and 5xx classes.
	StatusSuccess = "success"

	// StatusError labels 4xx and 5xx status codes.
	StatusError = "error"

	// UnknownMessage is the reason phrase for codes missing from the standard table.
	UnknownMessage = "Unknown"
)

// StatusLabel classifies a status code by its leading decimal digit.
// 4 and 5 yield StatusError; anything else, including out of range codes,
// yields StatusSuccess.
func StatusLabel(code int) string {
	switch strconv.Itoa(code)[0] {
	case '4', '5':
		return StatusError
	}
	return StatusSuccess
}

// StatusMessage returns the standard reason phrase for code, or UnknownMessage.
func StatusMessage(code int) string {
	if text := http.StatusText(code); text != "" {
		return text
	}
	return UnknownMessage
}
