package resilience

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"
)

// transientPatterns are message substrings worth a blind retry. The list is
// tuned to this system's dependencies: the scoring APIs surface throttling
// and gateway failures as strings, sqlite reports a busy writer as
// "database is locked", and postgres reports pool and recovery conditions
// the same way.
var transientPatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"i/o timeout",
	"no such host",
	"temporarily unavailable",
	"temporary failure",
	"unexpected eof",
	"rate limit",
	"too many requests",
	"too many connections",
	"service unavailable",
	"bad gateway",
	"gateway timeout",
	"server overloaded",
	"database is locked",
	"database table is locked",
	"the database system is starting up",
	"conn busy",
	"conn closed",
	"pool closed",
}

// IsTransient reports whether err is worth retrying. Context expiry never
// is: the caller already gave up or ran out of time. Network timeouts and
// refused/reset connections always are. Anything else is matched against
// the known transient message patterns.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	for _, errno := range []syscall.Errno{
		syscall.ECONNRESET, syscall.ECONNREFUSED, syscall.ECONNABORTED, syscall.EPIPE,
	} {
		if errors.Is(err, errno) {
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range transientPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
