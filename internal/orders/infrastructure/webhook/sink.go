package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	orders "order-totals/internal/orders/domain"
)

const sinkName = "webhook"

// ModeReplace tells the receiver to drop any totals it held before.
const ModeReplace = "replace"

// Claims are the JWT claims sent with every push.
type Claims struct {
	Mode string `json:"mode"`
	jwt.RegisteredClaims
}

type payload struct {
	Mode        string                 `json:"mode"`
	GeneratedAt time.Time              `json:"generated_at"`
	Customers   int                    `json:"customers"`
	Totals      []orders.CustomerTotal `json:"totals"`
}

// Sink posts customer totals to a ledger endpoint authenticated with an HS256 bearer token.
type Sink struct {
	url      string
	secret   []byte
	issuer   string
	tokenTTL time.Duration
	client   *http.Client
	now      func() time.Time
}

// Option configures the sink.
type Option func(*Sink)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Sink) {
		if timeout > 0 {
			s.client.Timeout = timeout
		}
	}
}

// WithIssuer sets the token issuer.
func WithIssuer(issuer string) Option {
	return func(s *Sink) {
		if issuer != "" {
			s.issuer = issuer
		}
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Sink) {
		if client != nil {
			s.client = client
		}
	}
}

// WithClock overrides the time source used for tokens and payloads.
func WithClock(now func() time.Time) Option {
	return func(s *Sink) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSink constructs a webhook sink.
func NewSink(url string, secret []byte, opts ...Option) (*Sink, error) {
	if url == "" {
		return nil, errors.New("webhook sink: empty url")
	}
	if len(secret) == 0 {
		return nil, errors.New("webhook sink: empty secret")
	}
	s := &Sink{
		url:      url,
		secret:   secret,
		issuer:   "customer-totals",
		tokenTTL: 5 * time.Minute,
		client:   &http.Client{Timeout: 10 * time.Second},
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ReplaceTotals posts the full totals set. Any transport or non-2xx failure is a SinkPersistenceError.
func (s *Sink) ReplaceTotals(ctx context.Context, totals orders.CustomerTotals) error {
	if totals == nil {
		return orders.ErrNilTotals
	}
	return orders.NewSinkPersistenceError(sinkName, s.post(ctx, totals))
}

func (s *Sink) post(ctx context.Context, totals orders.CustomerTotals) error {
	now := s.now()
	body, err := json.Marshal(payload{
		Mode:        ModeReplace,
		GeneratedAt: now,
		Customers:   len(totals),
		Totals:      totals.Rows(),
	})
	if err != nil {
		return err
	}
	token, err := s.signToken(now)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("non-2xx status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	return nil
}

func (s *Sink) signToken(now time.Time) (string, error) {
	claims := Claims{
		Mode: ModeReplace,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   "customer_totals",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ParseToken validates a bearer token produced by a sink sharing secret.
func ParseToken(tokenString string, secret []byte) (*Claims, error) {
	if tokenString == "" {
		return nil, errors.New("webhook sink: empty token")
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("webhook sink: invalid token")
	}
	return claims, nil
}
