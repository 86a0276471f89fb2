package elastic

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/kailas-cloud/eslayer/internal/db"
)

// classify maps an engine error response onto db sentinels.
func classify(op string, status int, body []byte) error {
	errType, reason := errorDetails(gjson.GetBytes(body, "error"))
	if reason == "" {
		reason = http.StatusText(status)
	}
	return &db.Error{Op: op, Status: status, Err: fmt.Errorf("%w: %s", sentinelFor(status, errType), reason)}
}

// classifyItem maps a per-item bulk or mget failure onto db sentinels.
func classifyItem(op string, status int, item gjson.Result) error {
	errType, reason := errorDetails(item)
	if reason == "" {
		reason = http.StatusText(status)
	}
	return &db.Error{Op: op, Status: status, Err: fmt.Errorf("%w: %s", sentinelFor(status, errType), reason)}
}

func errorDetails(e gjson.Result) (errType, reason string) {
	if !e.Exists() {
		return "", ""
	}
	// Old engines report some errors as a plain string.
	if e.Type == gjson.String {
		return "", e.String()
	}
	errType = e.Get("type").String()
	reason = e.Get("reason").String()
	if errType != "" && reason != "" {
		reason = errType + ": " + reason
	}
	return errType, reason
}

func sentinelFor(status int, errType string) error {
	switch {
	case status == http.StatusNotFound && errType == "index_not_found_exception":
		return db.ErrIndexNotFound
	case status == http.StatusNotFound:
		return db.ErrDocumentNotFound
	case status == http.StatusConflict:
		return db.ErrVersionConflict
	case errType == "resource_already_exists_exception", errType == "index_already_exists_exception":
		return db.ErrIndexExists
	case status == http.StatusTooManyRequests,
		status == http.StatusBadGateway,
		status == http.StatusServiceUnavailable,
		status == http.StatusGatewayTimeout:
		return db.ErrUnavailable
	case status >= 400 && status < 500:
		return db.ErrBadRequest
	default:
		return errEngine
	}
}

var errEngine = errors.New("engine error")
