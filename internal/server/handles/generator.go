// Package handles derives canonical, collision-free account handles from
// user-supplied display names.
package handles

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophaccounts/internal/common"
)

const (
	MinLength    = 3
	MaxBase      = 20
	SuffixLength = 4
	MaxAttempts  = 10
)

// ExistsFunc reports whether a handle is already taken.
type ExistsFunc func(ctx context.Context, handle string) (bool, error)

type Generator struct {
	exists   ExistsFunc
	random   io.Reader
	now      func() time.Time
	attempts int
}

type Option func(*Generator)

// WithRandom replaces crypto/rand as the suffix source.
func WithRandom(r io.Reader) Option {
	return func(g *Generator) { g.random = r }
}

// WithClock replaces time.Now for the timestamp fallback.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

func NewGenerator(exists ExistsFunc, opts ...Option) *Generator {
	g := &Generator{
		exists:   exists,
		random:   rand.Reader,
		now:      time.Now,
		attempts: MaxAttempts,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Canonicalize lowercases seed, drops everything outside [a-z0-9] and
// truncates to MaxBase characters.
func Canonicalize(seed string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(seed) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			if b.Len() == MaxBase {
				break
			}
		}
	}
	return b.String()
}

// Generate returns the canonical form of seed if it is free, otherwise the
// first free "<base>_<4 random chars>" within MaxAttempts tries, otherwise
// "<base>_<last 6 digits of the epoch millis>" without a further check.
//
// The existence checks are advisory: a concurrent registration can still take
// the returned handle, which the store reports as a duplicate on create.
func (g *Generator) Generate(ctx context.Context, seed string) (string, error) {
	base := Canonicalize(seed)
	if len(base) < MinLength {
		return "", fmt.Errorf("%w: %q has fewer than %d usable characters", common.ErrInvalidHandleSeed, seed, MinLength)
	}

	taken, err := g.exists(ctx, base)
	if err != nil {
		return "", err
	}
	if !taken {
		return base, nil
	}

	for i := 0; i < g.attempts; i++ {
		suffix, err := common.RandomString(g.random, common.LowerAlphanumeric, SuffixLength)
		if err != nil {
			return "", fmt.Errorf("handle suffix: %w", err)
		}
		candidate := base + "_" + suffix

		taken, err := g.exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}

	return fmt.Sprintf("%s_%06d", base, g.now().UnixMilli()%1_000_000), nil
}
