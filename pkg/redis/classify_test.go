package redis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{name: "nil", err: nil, want: KindNone},
		{name: "canceled", err: context.Canceled, want: KindCanceled},
		{name: "deadline", err: fmt.Errorf("evalsha: %w", context.DeadlineExceeded), want: KindCanceled},
		{name: "closed", err: redis.ErrClosed, want: KindClosed},
		{name: "noscript", err: replyErr("NOSCRIPT No matching script"), want: KindNoScript},
		{name: "noauth", err: replyErr("NOAUTH Authentication required."), want: KindAuth},
		{name: "wrongpass", err: replyErr("WRONGPASS invalid username-password pair"), want: KindAuth},
		{name: "legacy auth", err: replyErr("ERR invalid password"), want: KindAuth},
		{name: "loading", err: replyErr("LOADING Redis is loading the dataset in memory"), want: KindTransient},
		{name: "readonly", err: replyErr("READONLY You can't write against a read only replica."), want: KindTransient},
		{name: "script runtime", err: replyErr("ERR user_script:3: attempt to index a nil value"), want: KindScript},
		{name: "pool timeout", err: errors.New("redis: connection pool timeout"), want: KindPoolExhausted},
		{name: "pool exhausted", err: errors.New("redis: connection pool exhausted"), want: KindPoolExhausted},
		{name: "eof", err: io.EOF, want: KindTransient},
		{name: "reset", err: fmt.Errorf("read: %w", syscall.ECONNRESET), want: KindTransient},
		{name: "dial", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("refused")}, want: KindTransient},
		{name: "other", err: errors.New("something odd"), want: KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Fatalf("Classify(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestErrorKindRetryable(t *testing.T) {
	for _, kind := range []ErrorKind{KindTransient, KindPoolExhausted} {
		if !kind.Retryable() {
			t.Fatalf("%s should be retryable", kind)
		}
	}
	for _, kind := range []ErrorKind{KindAuth, KindNoScript, KindScript, KindCanceled, KindClosed, KindUnknown} {
		if kind.Retryable() {
			t.Fatalf("%s should not be retryable", kind)
		}
	}
}

func TestClassifyLiveAuthFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.RequireAuth("s3cret")

	raw := redis.NewClient(&redis.Options{Addr: mr.Addr(), Password: "wrong"})
	t.Cleanup(func() { _ = raw.Close() })

	err := raw.Ping(context.Background()).Err()
	if err == nil {
		t.Fatalf("expected auth failure")
	}
	if got := Classify(err); got != KindAuth {
		t.Fatalf("expected auth kind, got %q (%v)", got, err)
	}
}
