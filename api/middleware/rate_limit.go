package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/telcobill-backend/api/responses"
	pkgerrors "github.com/angelmondragon/telcobill-backend/pkg/errors"
	"github.com/angelmondragon/telcobill-backend/pkg/logger"
)

type rateLimiterStore interface {
	IncrWithTTL(context.Context, string, time.Duration) (int64, error)
	RateLimitKey(parts ...string) string
}

// keyFunc derives the counter subject for a request. An empty subject skips the rule.
type keyFunc func(r *http.Request, body []byte) string

type rateRule struct {
	scope    string
	limit    int64
	readBody bool
	subject  keyFunc
}

// RateLimitPolicy is a named window plus the counters checked against it.
type RateLimitPolicy struct {
	name   string
	window time.Duration
	rules  []rateRule
}

// NewAuthRateLimitPolicy throttles credential endpoints by caller address and
// by the hashed email in the JSON body.
func NewAuthRateLimitPolicy(name string, window time.Duration, ipLimit, emailLimit int) RateLimitPolicy {
	p := RateLimitPolicy{name: policyName(name, "auth"), window: window}
	if ipLimit > 0 {
		p.rules = append(p.rules, rateRule{scope: "ip", limit: int64(ipLimit), subject: ipSubject})
	}
	if emailLimit > 0 {
		p.rules = append(p.rules, rateRule{scope: "email", limit: int64(emailLimit), readBody: true, subject: emailSubject})
	}
	return p
}

// NewCustomerRateLimitPolicy throttles an authenticated surface per customer.
// It must be mounted after Auth.
func NewCustomerRateLimitPolicy(name string, window time.Duration, customerLimit int) RateLimitPolicy {
	p := RateLimitPolicy{name: policyName(name, "customer"), window: window}
	if customerLimit > 0 {
		p.rules = append(p.rules, rateRule{scope: "customer", limit: int64(customerLimit), subject: customerSubject})
	}
	return p
}

func policyName(name, fallback string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return fallback
	}
	return name
}

func (p RateLimitPolicy) enabled() bool {
	return p.window > 0 && len(p.rules) > 0
}

func (p RateLimitPolicy) needsBody() bool {
	for _, rule := range p.rules {
		if rule.readBody {
			return true
		}
	}
	return false
}

func (p RateLimitPolicy) retryAfterSeconds() int {
	return int(p.window.Seconds())
}

// RateLimit counts each request against every rule of the policy and rejects
// the first rule whose counter exceeds its limit within the window.
func RateLimit(policy RateLimitPolicy, store rateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			var body []byte
			if policy.needsBody() && r.Body != nil {
				var err error
				body, err = io.ReadAll(io.LimitReader(r.Body, maxRateLimitBody))
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
					return
				}
				r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), r.Body))
			}

			for _, rule := range policy.rules {
				subject := rule.subject(r, body)
				if subject == "" {
					continue
				}
				count, err := store.IncrWithTTL(ctx, store.RateLimitKey(policy.name, rule.scope, subject), policy.window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				if count > rule.limit {
					rejectRateLimited(ctx, logg, w, policy, rule, subject, count)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// maxRateLimitBody bounds how much of the body is buffered to find the email.
const maxRateLimitBody = 64 << 10

func rejectRateLimited(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, policy RateLimitPolicy, rule rateRule, subject string, count int64) {
	retryAfter := policy.retryAfterSeconds()
	if logg != nil {
		logCtx := logg.WithFields(ctx, map[string]any{
			"policy":         policy.name,
			"scope":          rule.scope,
			"subject":        subject,
			"attempts":       count,
			"limit":          rule.limit,
			"window_seconds": retryAfter,
		})
		logg.Warn(logCtx, "rate limit exceeded")
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	err := pkgerrors.New(pkgerrors.CodeRateLimit, "too many requests").
		WithDetails(map[string]any{"scope": rule.scope, "retry_after_seconds": retryAfter})
	responses.WriteError(ctx, nil, w, err)
}

func ipSubject(r *http.Request, _ []byte) string {
	return clientIP(r)
}

func emailSubject(_ *http.Request, body []byte) string {
	var payload struct {
		Email string `json:"email"`
	}
	if len(body) == 0 || json.Unmarshal(body, &payload) != nil {
		return ""
	}
	email := strings.ToLower(strings.TrimSpace(payload.Email))
	if email == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(email))
	return hex.EncodeToString(sum[:])
}

func customerSubject(r *http.Request, _ []byte) string {
	id := CustomerIDFromContext(r.Context())
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}

// clientIP prefers the first forwarded hop, which the load balancer sets.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
