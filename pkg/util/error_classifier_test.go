package util

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/textproto"
	"testing"

	"github.com/jackc/pgx/v5"
)

func TestClassifyError(t *testing.T) {
	var syntaxErr error
	if err := json.Unmarshal([]byte("{"), &struct{}{}); err != nil {
		syntaxErr = err
	}

	cases := []struct {
		name      string
		err       error
		wantType  string
		retryable bool
	}{
		{"nil", nil, "", false},
		{"json", syntaxErr, "json_decode_error", false},
		{"no rows", fmt.Errorf("load: %w", pgx.ErrNoRows), "not_found", false},
		{"deadline", context.DeadlineExceeded, "timeout", true},
		{"smtp 550", &textproto.Error{Code: 550, Msg: "mailbox unavailable"}, "smtp_rejected", false},
		{"smtp 421", &textproto.Error{Code: 421, Msg: "try later"}, "smtp_temporary", true},
		{"breaker", errors.New("circuit breaker is open"), "circuit_open", true},
		{"other", errors.New("boom"), "unknown_error", false},
	}

	for _, tt := range cases {
		gotType, gotRetry := ClassifyError(tt.err)
		if gotType != tt.wantType || gotRetry != tt.retryable {
			t.Fatalf("%s: ClassifyError=(%q,%v), want (%q,%v)", tt.name, gotType, gotRetry, tt.wantType, tt.retryable)
		}
	}
}

func TestDeduperWithoutRedisAlwaysAllows(t *testing.T) {
	d := NewDeduper(nil, 0, nil)
	if !d.AcquireOnce(context.Background(), "h", "1") || !d.AcquireOnce(context.Background(), "h", "1") {
		t.Fatal("expected nil-redis deduper to allow processing")
	}
}
