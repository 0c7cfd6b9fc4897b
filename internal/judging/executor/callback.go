package executor

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// ResultIDParam carries the result id in the callback URL.
	ResultIDParam = "resultId"
	// LegacyResultIDParam is accepted from callbacks issued by older deployments.
	LegacyResultIDParam = "submissionTestCaseResultId"
	// SignatureParam carries the callback signature.
	SignatureParam = "sig"

	WebhookPath = "/api/webhook"

	defaultSignatureTTL = 2 * time.Hour
)

var (
	ErrSignatureMissing = errors.New("callback signature missing")
	ErrSignatureInvalid = errors.New("callback signature invalid")
)

// CallbackConfig configures CallbackSigner.
type CallbackConfig struct {
	// PublicBaseURL is the address the execution service uses to reach this service.
	PublicBaseURL string `yaml:"publicBaseURL"`
	// Secret enables signed callback URLs when non-empty.
	Secret       string        `yaml:"secret"`
	SignatureTTL time.Duration `yaml:"signatureTTL"`
}

// CallbackSigner builds callback URLs and verifies their signatures.
type CallbackSigner struct {
	baseURL string
	secret  []byte
	ttl     time.Duration
	now     func() time.Time
}

type callbackClaims struct {
	ResultID     string `json:"rid"`
	SubmissionID string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

func NewCallbackSigner(cfg CallbackConfig) (*CallbackSigner, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/")
	if base == "" {
		return nil, errors.New("callback publicBaseURL is required")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("invalid callback publicBaseURL: %w", err)
	}
	if cfg.SignatureTTL <= 0 {
		cfg.SignatureTTL = defaultSignatureTTL
	}
	return &CallbackSigner{
		baseURL: base,
		secret:  []byte(cfg.Secret),
		ttl:     cfg.SignatureTTL,
		now:     time.Now,
	}, nil
}

// Signed reports whether callbacks carry and require a signature.
func (s *CallbackSigner) Signed() bool {
	return len(s.secret) > 0
}

// URL returns {base}/api/webhook?resultId=<id>[&sig=<jwt>].
func (s *CallbackSigner) URL(resultID, submissionID string) (string, error) {
	q := url.Values{}
	q.Set(ResultIDParam, resultID)
	if s.Signed() {
		now := s.now()
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, callbackClaims{
			ResultID:     resultID,
			SubmissionID: submissionID,
			RegisteredClaims: jwt.RegisteredClaims{
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			},
		})
		sig, err := token.SignedString(s.secret)
		if err != nil {
			return "", fmt.Errorf("sign callback failed: %w", err)
		}
		q.Set(SignatureParam, sig)
	}
	return s.baseURL + WebhookPath + "?" + q.Encode(), nil
}

// Verify checks that sig was issued for resultID. It accepts anything when
// signing is disabled.
func (s *CallbackSigner) Verify(resultID, sig string) error {
	if !s.Signed() {
		return nil
	}
	if sig == "" {
		return ErrSignatureMissing
	}
	parsed, err := jwt.ParseWithClaims(sig, &callbackClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid {
		return ErrSignatureInvalid
	}
	claims, ok := parsed.Claims.(*callbackClaims)
	if !ok || claims.ResultID != resultID {
		return ErrSignatureInvalid
	}
	return nil
}
