package mandate

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/jcgs2503/vestbridge/internal/errors"
)

// Load reads and validates a mandate from a YAML file. Allow/block list
// overlaps are logged as warnings; the block list wins at evaluation time.
func Load(path string, logger zerolog.Logger) (*Mandate, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "reading mandate %s", path)
	}

	m := &Mandate{}
	if err := v.Unmarshal(m); err != nil {
		return nil, errors.Wrapf(err, "parsing mandate %s", path)
	}

	if m.MandateID == "" {
		m.MandateID = fmt.Sprintf("mnd_%s", uuid.NewString()[:8])
	}
	if m.Version == 0 {
		m.Version = 1
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	overlaps, err := m.Validate()
	if err != nil {
		return nil, err
	}
	for _, symbol := range overlaps {
		logger.Warn().
			Str("mandate_id", m.MandateID).
			Str("symbol", symbol).
			Msg("Symbol present in both allowed and blocked lists; block list wins")
	}

	return m, nil
}

// LoadFromDir loads a named mandate from the mandates directory.
func LoadFromDir(dir, name string, logger zerolog.Logger) (*Mandate, error) {
	path := filepath.Join(dir, name+".yaml")
	if _, err := os.Stat(path); err != nil {
		path = filepath.Join(dir, name+".yml")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrapf(errors.ErrMandateNotFound, "%s", path)
	}
	return Load(path, logger)
}

// FileHash returns the sha256 hash of a mandate file's raw contents as
// "sha256:<hex>". The hash is recorded in every audit entry so decisions
// can be tied to the exact policy text that produced them.
func FileHash(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "reading mandate %s", path)
	}
	return fmt.Sprintf("sha256:%x", sha256.Sum256(content)), nil
}

// Holder holds the active mandate for a session. Reload swaps the pointer
// atomically so in-flight evaluations keep reading a consistent snapshot.
type Holder struct {
	current atomic.Pointer[Mandate]
}

// NewHolder creates a holder with the given initial mandate.
func NewHolder(m *Mandate) *Holder {
	h := &Holder{}
	h.current.Store(m)
	return h
}

// Active returns the currently active mandate.
func (h *Holder) Active() *Mandate {
	return h.current.Load()
}

// Swap atomically replaces the active mandate and returns the previous one.
func (h *Holder) Swap(m *Mandate) *Mandate {
	return h.current.Swap(m)
}
