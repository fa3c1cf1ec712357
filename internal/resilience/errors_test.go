package resilience

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"
)

func TestIsTransient_MessagePatterns(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"sqlite busy writer", errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{"sqlite table lock", errors.New("database table is locked: ledger"), true},
		{"postgres in recovery", errors.New("FATAL: the database system is starting up"), true},
		{"pgx conn busy", errors.New("conn busy"), true},
		{"pgx pool closed", errors.New("pool closed"), true},
		{"api throttled", errors.New("429 Too Many Requests"), true},
		{"api rate limited", errors.New("rate limit exceeded, retry after 2s"), true},
		{"bad gateway", errors.New("502 Bad Gateway"), true},
		{"service unavailable", errors.New("503 Service Unavailable"), true},
		{"refused", errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), true},
		{"reset", errors.New("read tcp: connection reset by peer"), true},
		{"dns", errors.New("lookup api.groq.com: no such host"), true},
		{"bad api key", errors.New("401 invalid api key"), false},
		{"constraint violation", errors.New("UNIQUE constraint failed: ledger.id"), false},
		{"auth failed", errors.New("password authentication failed"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsTransient_Syscalls(t *testing.T) {
	for _, errno := range []syscall.Errno{
		syscall.ECONNRESET, syscall.ECONNREFUSED, syscall.ECONNABORTED, syscall.EPIPE,
	} {
		if !IsTransient(fmt.Errorf("write: %w", errno)) {
			t.Errorf("expected %v transient", errno)
		}
	}
}

func TestIsTransient_ContextExpiryIsFinal(t *testing.T) {
	if IsTransient(context.Canceled) {
		t.Error("cancelled context must not be retried")
	}
	if IsTransient(fmt.Errorf("append: %w", context.DeadlineExceeded)) {
		t.Error("expired deadline must not be retried")
	}
}

func TestIsTransient_NetTimeout(t *testing.T) {
	if !IsTransient(&timeoutErr{}) {
		t.Error("net timeout must be transient")
	}
}

type timeoutErr struct{}

func (*timeoutErr) Error() string   { return "operation timed out" }
func (*timeoutErr) Timeout() bool   { return true }
func (*timeoutErr) Temporary() bool { return true }
