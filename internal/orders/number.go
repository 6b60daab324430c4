package orders

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
)

const sequenceWidth = 6

// sequenceStore is the Redis counter surface; nil means numbers come from the
// orders table alone.
type sequenceStore interface {
	Incr(ctx context.Context, key string) (int64, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SequenceKey(name string) string
}

// NumberGenerator mints human readable order numbers of the form
// <prefix>-<year>-<zero padded sequence>.
type NumberGenerator struct {
	prefix string
	repo   Repository
	store  sequenceStore
}

// NewNumberGenerator builds a generator. store may be nil.
func NewNumberGenerator(prefix string, repo Repository, store sequenceStore) (*NumberGenerator, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "ORD"
	}
	return &NumberGenerator{prefix: prefix, repo: repo, store: store}, nil
}

// Next returns a candidate number for the year of at. resync forces the Redis
// counter to catch up with the table, which callers request after a unique
// violation.
func (g *NumberGenerator) Next(ctx context.Context, tx *gorm.DB, at time.Time, resync bool) (string, error) {
	yearPrefix := fmt.Sprintf("%s-%d-", g.prefix, at.UTC().Year())

	if g.store == nil {
		floor, err := g.floor(ctx, tx, yearPrefix)
		if err != nil {
			return "", err
		}
		return g.format(yearPrefix, floor+1), nil
	}

	key := g.store.SequenceKey(fmt.Sprintf("orders:%s", strings.TrimSuffix(yearPrefix, "-")))
	next, err := g.store.Incr(ctx, key)
	if err != nil {
		return "", fmt.Errorf("increment order sequence: %w", err)
	}
	if next == 1 || resync {
		floor, err := g.floor(ctx, tx, yearPrefix)
		if err != nil {
			return "", err
		}
		if floor >= next {
			next = floor + 1
			if err := g.store.Set(ctx, key, next, 0); err != nil {
				return "", fmt.Errorf("resync order sequence: %w", err)
			}
		}
	}
	return g.format(yearPrefix, next), nil
}

func (g *NumberGenerator) floor(ctx context.Context, tx *gorm.DB, yearPrefix string) (int64, error) {
	last, err := g.repo.WithTx(tx).MaxOrderNumber(ctx, yearPrefix)
	if err != nil {
		return 0, err
	}
	if last == "" {
		return 0, nil
	}
	seq, err := strconv.ParseInt(strings.TrimPrefix(last, yearPrefix), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse order number %q: %w", last, err)
	}
	return seq, nil
}

func (g *NumberGenerator) format(yearPrefix string, seq int64) string {
	return fmt.Sprintf("%s%0*d", yearPrefix, sequenceWidth, seq)
}
