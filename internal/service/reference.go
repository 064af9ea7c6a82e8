package service

import (
	"context"
	"math/rand/v2"
	"strings"
	"time"

	"gymaccess/internal/metrics"
	"gymaccess/internal/models"

	"github.com/rs/zerolog"
)

// ReferenceChecker reports whether a reference id is already recorded.
type ReferenceChecker interface {
	ReferenceExists(ctx context.Context, refID string) (bool, error)
}

// lookupErrorBackoff paces retries while the store cannot answer.
const lookupErrorBackoff = 50 * time.Millisecond

// ReferenceGenerator issues reference ids that are not yet in the access log.
type ReferenceGenerator struct {
	store  ReferenceChecker
	digit  func() int
	logger *zerolog.Logger
}

func NewReferenceGenerator(store ReferenceChecker, logger *zerolog.Logger) *ReferenceGenerator {
	return &ReferenceGenerator{
		store:  store,
		digit:  func() int { return rand.IntN(10) },
		logger: logger,
	}
}

func (g *ReferenceGenerator) candidate() string {
	var sb strings.Builder
	sb.Grow(len(models.ReferencePrefix) + models.ReferenceDigits)
	sb.WriteString(models.ReferencePrefix)
	for i := 0; i < models.ReferenceDigits; i++ {
		sb.WriteByte(byte('0' + g.digit()))
	}
	return sb.String()
}

// Generate draws candidates until one is unused. There is no retry cap; a
// failed existence check counts as a collision. Only ctx ends the loop early.
func (g *ReferenceGenerator) Generate(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		ref := g.candidate()
		exists, err := g.store.ReferenceExists(ctx, ref)
		if err != nil {
			g.logger.Warn().Err(err).Str("reference_id", ref).Msg("reference lookup failed, drawing another")
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(lookupErrorBackoff):
			}
			continue
		}
		if exists {
			metrics.IncReferenceCollision()
			g.logger.Debug().Str("reference_id", ref).Msg("reference collision")
			continue
		}
		return ref, nil
	}
}
