package cart

import (
	"time"

	"github.com/goccy/go-json"

	pkgerrors "github.com/angelmondragon/cart-service/pkg/errors"
)

// Failure codes a script may put in the err field of its reply.
const (
	replyInvalidState    = "INVALID_STATE"
	replyCapacity        = "CAPACITY"
	replyNotFound        = "NOT_FOUND"
	replyEmptyCart       = "EMPTY_CART"
	replyOwnerMismatch   = "OWNER_MISMATCH"
	replyMissingSnapshot = "MISSING_SNAPSHOT"
)

// Reply is the decoded envelope every cart script returns.
type Reply struct {
	OK        bool      `json:"ok"`
	Err       string    `json:"err"`
	Exists    bool      `json:"exists"`
	Changed   bool      `json:"changed"`
	State     string    `json:"state"`
	Side      string    `json:"side"`
	Limit     string    `json:"limit"`
	Max       int       `json:"max"`
	Requested int       `json:"requested"`
	Merged    int       `json:"merged"`
	Conflicts int       `json:"conflicts"`
	TTLMillis int64     `json:"ttl_ms"`
	Doc       *document `json:"cart"`
}

// DecodeReply parses a script result. Unparseable or missing replies are
// integrity errors; ok=false replies become the matching typed error.
func DecodeReply(script string, raw any) (*Reply, error) {
	if raw == nil {
		return nil, pkgerrors.New(pkgerrors.CodeIntegrity, "script returned no result").
			WithDetails(map[string]any{"script": script})
	}
	var payload []byte
	switch v := raw.(type) {
	case string:
		payload = []byte(v)
	case []byte:
		payload = v
	default:
		return nil, pkgerrors.New(pkgerrors.CodeIntegrity, "script returned an unexpected type").
			WithDetails(map[string]any{"script": script})
	}

	var r Reply
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeIntegrity, err, "script returned malformed JSON").
			WithDetails(map[string]any{"script": script})
	}
	if !r.OK {
		return nil, r.failure(script)
	}
	if r.Exists && r.Doc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeIntegrity, "script reply is missing the cart").
			WithDetails(map[string]any{"script": script})
	}
	return &r, nil
}

// Cart converts the reply payload. An absent cart decodes as empty.
func (r *Reply) Cart(id string) (*Cart, error) {
	if !r.Exists || r.Doc == nil {
		return emptyCart(id), nil
	}
	c, err := r.Doc.toCart(id)
	if err != nil {
		return nil, err
	}
	if r.TTLMillis > 0 {
		c.TTL = time.Duration(r.TTLMillis) * time.Millisecond
	}
	return c, nil
}

func (r *Reply) failure(script string) error {
	switch r.Err {
	case replyInvalidState:
		details := map[string]any{"current_state": r.State}
		if r.Side != "" {
			details["cart"] = r.Side
		}
		return pkgerrors.New(pkgerrors.CodeInvalidStateTransition, "operation not allowed in state "+r.State).
			WithDetails(details)
	case replyCapacity:
		return pkgerrors.New(pkgerrors.CodeCapacityExceeded, "cart limit exceeded").
			WithDetails(map[string]any{"limit": r.Limit, "max": r.Max, "requested": r.Requested})
	case replyNotFound:
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
	case replyEmptyCart:
		return pkgerrors.New(pkgerrors.CodeValidation, "cannot checkout empty cart")
	case replyOwnerMismatch:
		return pkgerrors.New(pkgerrors.CodeValidation, r.Side+" cart belongs to another user").
			WithDetails(map[string]any{"cart": r.Side})
	case replyMissingSnapshot:
		return pkgerrors.New(pkgerrors.CodeIntegrity, "checkout started without a snapshot").
			WithDetails(map[string]any{"script": script})
	default:
		return pkgerrors.New(pkgerrors.CodeIntegrity, "script returned an unknown failure").
			WithDetails(map[string]any{"script": script, "err": r.Err})
	}
}
