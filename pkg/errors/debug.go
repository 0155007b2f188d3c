package errors

import (
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type ErrorDump struct {
	TopMessage string `json:"top_message"`
	Code       Code   `json:"code,omitempty"`

	Chain []string `json:"chain,omitempty"`

	// RedisReply is the raw error reply returned by the cache server, if any.
	RedisReply string `json:"redis_reply,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{
		TopMessage: err.Error(),
	}

	if te := As(err); te != nil {
		d.Code = te.Code()
	}

	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var replyErr redis.Error
	if errors.As(err, &replyErr) {
		d.RedisReply = replyErr.Error()
	}

	return d
}
