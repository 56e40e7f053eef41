// Package morph puts Russian full names into the dative case using the
// morpher.ru declension web service.
package morph

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// DefaultURL is the ws3 declension endpoint
const DefaultURL = "https://ws3.morpher.ru/russian/declension"

// Result is the part of a declension answer the certificates need
type Result struct {
	FullName  string // nominative, as asked
	Dative    string // full name in the dative case
	GivenName string // first name, nominative
}

// ServiceError is a non-success answer from the service
type ServiceError struct {
	Status  int
	Message string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("Status %d: %q", e.Status, e.Message)
}

// Temporary reports whether a retry could succeed
func (e *ServiceError) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

type Config struct {
	URL      string
	Token    string
	MaxTries uint
	Timeout  time.Duration
}

// Client calls the declension service
type Client struct {
	cfg     Config
	http    *http.Client
	log     zerolog.Logger
	backOff func() backoff.BackOff
}

// NewClient creates a declension client
func NewClient(cfg Config, log zerolog.Logger) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.MaxTries == 0 {
		cfg.MaxTries = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		log:     log.With().Str("component", "Morpher").Logger(),
		backOff: defaultBackOff,
	}
}

func defaultBackOff() backoff.BackOff {
	return backoff.NewExponentialBackOff()
}

// Declension asks the service for the forms of fio. Rate limiting and server
// errors are retried with exponential backoff; other failures come back as
// *ServiceError straight away.
func (c *Client) Declension(ctx context.Context, fio string) (Result, error) {
	op := func() (Result, error) {
		res, err := c.declension(ctx, fio)
		if err == nil {
			return res, nil
		}
		var svcErr *ServiceError
		if errors.As(err, &svcErr) && !svcErr.Temporary() {
			return Result{}, backoff.Permanent(err)
		}
		c.log.Debug().Err(err).Str("fio", fio).Msg("Declension attempt failed")
		return Result{}, err
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(c.backOff()),
		backoff.WithMaxTries(c.cfg.MaxTries),
	)
}

func (c *Client) declension(ctx context.Context, fio string) (Result, error) {
	q := url.Values{}
	q.Set("s", fio)
	q.Set("format", "json")
	if c.cfg.Token != "" {
		q.Set("token", c.cfg.Token)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL+"?"+q.Encode(), nil)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("failed to call morpher: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read morpher response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(body, "message").String()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return Result{}, &ServiceError{Status: resp.StatusCode, Message: msg}
	}
	if !gjson.ValidBytes(body) {
		return Result{}, &ServiceError{Status: resp.StatusCode, Message: "invalid JSON in response"}
	}

	dative := gjson.GetBytes(body, "Д").String()
	if dative == "" {
		return Result{}, &ServiceError{Status: resp.StatusCode, Message: "no dative form in response"}
	}
	return Result{
		FullName:  fio,
		Dative:    dative,
		GivenName: gjson.GetBytes(body, "ФИО.И").String(),
	}, nil
}
