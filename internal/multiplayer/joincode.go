package multiplayer

import (
	"context"
	"crypto/rand"
	stderrors "errors"
	"fmt"

	"github.com/braintease/backend/internal/errors"
)

// codeAlphabet excludes 0/O and 1/I so codes survive being read aloud or
// copied by hand.
const (
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength   = 6

	// 32^6 codes make collisions vanishingly rare; the cap exists so a
	// misbehaving store cannot spin this loop forever.
	maxCodeAttempts = 10
)

// CodeGenerator produces join codes that are unique among live sessions.
type CodeGenerator struct {
	store Store
}

func NewCodeGenerator(store Store) *CodeGenerator {
	return &CodeGenerator{store: store}
}

// Generate draws random codes until one is free, up to maxCodeAttempts.
func (g *CodeGenerator) Generate(ctx context.Context) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := randomCode()
		if err != nil {
			return "", fmt.Errorf("draw join code: %w", err)
		}

		_, err = g.store.GetByJoinCode(ctx, code)
		if stderrors.Is(err, ErrNotFound) {
			return code, nil
		}
		if err != nil {
			return "", errors.New(errors.CodeUnavailable,
				errors.WithMessagef("join code lookup failed"),
				errors.WithCause(err),
			)
		}
		// Collision, draw again.
	}

	return "", errors.New(errors.CodeResourceExhausted,
		errors.WithMessagef("could not allocate a unique join code after %d attempts", maxCodeAttempts))
}

func randomCode() (string, error) {
	b := make([]byte, codeLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
	}
	return string(b), nil
}
