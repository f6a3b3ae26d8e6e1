package errclass

import (
	"errors"
	"strings"
	"time"
)

type Category string

const (
	CategoryTransient Category = "transient"
	CategoryRateLimit Category = "rate_limit"
	CategoryRequote   Category = "requote"
	CategoryFatal     Category = "fatal"
)

const CodeUnknown = "UNKNOWN"

// ClassifiedError is the classifier's verdict on one raw error. It is a
// plain value, derived deterministically from the error text.
type ClassifiedError struct {
	Category        Category
	Code            string
	Retryable       bool
	RequiresRequote bool
	SuggestedDelay  time.Duration
	Raw             error
}

func (c ClassifiedError) Error() string {
	if c.Raw != nil {
		return c.Raw.Error()
	}
	return c.Code
}

// DelayHinter is implemented by errors that carry an upstream retry-after
// hint (HTTP 429 responses from the aggregator).
type DelayHinter interface {
	RetryAfter() time.Duration
}

type rule struct {
	code            string
	category        Category
	retryable       bool
	requiresRequote bool
	match           func(string) bool
}

func containsAny(subs ...string) func(string) bool {
	return func(msg string) bool {
		for _, s := range subs {
			if strings.Contains(msg, s) {
				return true
			}
		}
		return false
	}
}

// rules are checked in order, first match wins. Keep new entries grouped by
// category so the precedence stays readable.
var rules = []rule{
	// rate limiting before the generic network bucket, a 429 body often
	// mentions timeouts too
	{"RATE_LIMITED", CategoryRateLimit, true, false,
		containsAny("429", "rate limit", "rate-limit", "too many requests")},

	// network and upstream infrastructure failures
	{"NETWORK_ERROR", CategoryTransient, true, false,
		containsAny("connection refused", "connection reset", "no such host", "timeout", "timed out", "context deadline exceeded", "eof", "no response", "broken pipe")},
	{"UPSTREAM_5XX", CategoryTransient, true, false,
		containsAny("500", "502", "503", "504", "internal server error", "bad gateway", "service unavailable", "gateway timeout", "node is behind")},

	// conditions that can never succeed as requested
	{"INSUFFICIENT_FUNDS", CategoryFatal, false, false,
		containsAny("insufficient funds", "insufficient balance", "insufficient lamports")},
	{"INVALID_ACCOUNT", CategoryFatal, false, false,
		containsAny("invalid account", "account not found", "could not find account", "invalid mint", "incorrect program id")},
	{"TOKEN_BLOCKED", CategoryFatal, false, false,
		containsAny("blacklisted", "not in the allowed whitelist", "token is not tradable")},
	{"AMOUNT_TOO_SMALL", CategoryFatal, false, false,
		containsAny("amount is below minimum", "amount too small")},
	{"MALFORMED_TRANSACTION", CategoryFatal, false, false,
		containsAny("invalid instruction", "failed to deserialize", "sanitize", "signature verification failure")},

	// pricing moved out from under us, the old quote is dead
	{"SLIPPAGE_EXCEEDED", CategoryRequote, true, true,
		containsAny("slippage", "price moved", "exceeds desired slippage", "0x1771")},
	{"QUOTE_EXPIRED", CategoryRequote, true, true,
		containsAny("quote has expired", "quote expired", "stale quote", "quote is stale")},
	{"BLOCKHASH_EXPIRED", CategoryRequote, true, true,
		containsAny("blockhash not found", "block height exceeded", "blockhash expired")},
}

// Classify maps a raw error onto the retry taxonomy. Pure function: same
// message always yields the same verdict. Unmatched errors default to a
// retryable transient, most unknowns in this domain are infrastructure blips.
func Classify(err error) ClassifiedError {
	if err == nil {
		return ClassifiedError{Category: CategoryTransient, Code: CodeUnknown, Retryable: true}
	}

	msg := strings.ToLower(err.Error())

	var hint time.Duration
	var dh DelayHinter
	if errors.As(err, &dh) {
		hint = dh.RetryAfter()
	}

	for _, r := range rules {
		if r.match(msg) {
			ce := ClassifiedError{
				Category:        r.category,
				Code:            r.code,
				Retryable:       r.retryable,
				RequiresRequote: r.requiresRequote,
				Raw:             err,
			}
			if r.category == CategoryRateLimit {
				ce.SuggestedDelay = hint
			}
			return ce
		}
	}

	return ClassifiedError{
		Category:  CategoryTransient,
		Code:      CodeUnknown,
		Retryable: true,
		Raw:       err,
	}
}
