package redis

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/redis/go-redis/v9"
)

// ErrorKind classifies failures coming back from the cache engine.
type ErrorKind string

const (
	KindNone          ErrorKind = ""
	KindTransient     ErrorKind = "transient"
	KindPoolExhausted ErrorKind = "pool_exhausted"
	KindAuth          ErrorKind = "auth"
	KindNoScript      ErrorKind = "noscript"
	KindScript        ErrorKind = "script"
	KindCanceled      ErrorKind = "canceled"
	KindClosed        ErrorKind = "closed"
	KindUnknown       ErrorKind = "unknown"
)

// Retryable reports whether a fresh attempt may succeed without operator
// intervention.
func (k ErrorKind) Retryable() bool {
	return k == KindTransient || k == KindPoolExhausted
}

var transientReplyPrefixes = []string{
	"LOADING",
	"READONLY",
	"MASTERDOWN",
	"TRYAGAIN",
	"CLUSTERDOWN",
	"BUSY ",
}

var authReplyPrefixes = []string{
	"NOAUTH",
	"WRONGPASS",
	"NOPERM",
}

// Classify maps an error returned by go-redis onto an ErrorKind.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCanceled
	}
	if errors.Is(err, redis.ErrClosed) {
		return KindClosed
	}

	var reply redis.Error
	if errors.As(err, &reply) {
		msg := strings.TrimPrefix(reply.Error(), "ERR ")
		switch {
		case strings.HasPrefix(msg, "NOSCRIPT"):
			return KindNoScript
		case hasAnyPrefix(msg, authReplyPrefixes), isAuthMessage(msg):
			return KindAuth
		case hasAnyPrefix(msg, transientReplyPrefixes):
			return KindTransient
		}
		return KindScript
	}

	msg := err.Error()
	if strings.Contains(msg, "connection pool timeout") || strings.Contains(msg, "connection pool exhausted") {
		return KindPoolExhausted
	}
	if isAuthMessage(msg) {
		return KindAuth
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return KindTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindTransient
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindTransient
	}
	return KindUnknown
}

// IsNoScript reports whether err is the server telling us the script cache
// no longer holds the requested digest.
func IsNoScript(err error) bool {
	return Classify(err) == KindNoScript
}

func hasAnyPrefix(msg string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(msg, p) {
			return true
		}
	}
	return false
}

func isAuthMessage(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "invalid password") ||
		strings.Contains(lower, "invalid username-password") ||
		strings.Contains(lower, "authentication required")
}
