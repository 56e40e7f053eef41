package morph

import (
	"context"
	"errors"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"webinar-certs/internal/storage"
)

// Store is the durable name -> dative table
type Store interface {
	Get(ctx context.Context, name string) (string, bool, error)
	Set(ctx context.Context, name, inflected string) error
}

// Declensioner is the remote service
type Declensioner interface {
	Declension(ctx context.Context, fio string) (Result, error)
}

// Resolver looks names up in the durable store first, then in a per-process
// memo of service answers, and only then calls the service. Keys are the
// exact input strings.
type Resolver struct {
	store  Store
	client Declensioner
	memo   *lru.Cache[string, Result]
	log    zerolog.Logger
}

// NewResolver creates a resolver with a memo of at most size entries
func NewResolver(store Store, client Declensioner, size int, log zerolog.Logger) (*Resolver, error) {
	if size <= 0 {
		size = 1024
	}
	memo, err := lru.New[string, Result](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create memo: %w", err)
	}
	return &Resolver{
		store:  store,
		client: client,
		memo:   memo,
		log:    log.With().Str("component", "NameResolver").Logger(),
	}, nil
}

// Resolve returns the dative form of fullName
func (r *Resolver) Resolve(ctx context.Context, fullName string) (Result, error) {
	stored, found, err := r.store.Get(ctx, fullName)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read stored morph: %w", err)
	}
	if found {
		r.log.Debug().Str("fio", fullName).Msg("Using stored morph")
		return Result{FullName: fullName, Dative: stored, GivenName: givenName(fullName)}, nil
	}

	if res, ok := r.memo.Get(fullName); ok {
		return res, nil
	}

	res, err := r.client.Declension(ctx, fullName)
	if err != nil {
		return Result{}, err
	}
	r.memo.Add(fullName, res)

	if err := r.store.Set(ctx, fullName, res.Dative); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		r.log.Warn().Err(err).Str("fio", fullName).Msg("Failed to store morph")
	}
	return res, nil
}

// givenName takes the second word of "Family Given Patronymic"
func givenName(fullName string) string {
	parts := strings.Fields(fullName)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}
