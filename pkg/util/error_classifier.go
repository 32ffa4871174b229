package util

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/textproto"
	"strings"

	"github.com/jackc/pgx/v5"
)

// ClassifyError returns a short error type label used in logs and metrics.
// The second value reports whether a later attempt could plausibly succeed;
// notification jobs still never retry, the label only helps operators.
func ClassifyError(err error) (string, bool) {
	if err == nil {
		return "", false
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return "json_decode_error", false
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return "not_found", false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout", true
	}
	if errors.Is(err, context.Canceled) {
		return "context_canceled", false
	}

	// SMTP 协议错误：5xx 永久失败，4xx 临时失败
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		if protoErr.Code >= 500 {
			return "smtp_rejected", false
		}
		return "smtp_temporary", true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return "network_timeout", true
		}
		return "network_error", true
	}

	errStr := err.Error()
	if strings.Contains(errStr, "circuit breaker is open") {
		return "circuit_open", true
	}
	if strings.Contains(errStr, "connection") {
		return "connection_error", true
	}

	return "unknown_error", false
}
