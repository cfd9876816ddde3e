package natsutil

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nkeys"
)

// ErrNKeyNotUser is returned when the seed does not belong to a user key.
var ErrNKeyNotUser = errors.New("nkey seed is not a user seed")

// NKeyOption loads a user seed from seedFile and returns the option that
// answers the server's nonce challenge with it. An empty path yields no option.
func NKeyOption(seedFile string) (nats.Option, error) {
	if seedFile == "" {
		return nil, nil
	}

	raw, err := os.ReadFile(seedFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read nkey seed: %w", err)
	}

	kp, err := nkeys.FromSeed([]byte(strings.TrimSpace(string(raw))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse nkey seed: %w", err)
	}

	pub, err := kp.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("failed to derive nkey public key: %w", err)
	}

	if !nkeys.IsValidPublicUserKey(pub) {
		return nil, ErrNKeyNotUser
	}

	return nats.Nkey(pub, kp.Sign), nil
}

// AuthOptions prepends the nkey option for seedFile to extra.
func AuthOptions(seedFile string, extra ...nats.Option) ([]nats.Option, error) {
	opt, err := NKeyOption(seedFile)
	if err != nil {
		return nil, err
	}

	if opt == nil {
		return extra, nil
	}

	return append([]nats.Option{opt}, extra...), nil
}
