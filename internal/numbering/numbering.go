// Package numbering generates human-readable document numbers from naming
// series patterns backed by a persisted counter.
package numbering

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config maps doctype names to naming series patterns. It is supplied at
// construction; the registry never mutates after that.
type Config map[string]string

// DefaultConfig returns the standard naming series per doctype.
func DefaultConfig() Config {
	return Config{
		"Sales Order":      "SAL-ORD-.YYYY.-",
		"Purchase Order":   "PUR-ORD-.YYYY.-",
		"Sales Invoice":    "SINV-.YYYY.-",
		"Purchase Invoice": "PINV-.YYYY.-",
		"Journal Entry":    "JENT-.YYYY.-",
		"Payment Entry":    "PAY-.YYYY.-",
		"Delivery Note":    "DN-.YYYY.-",
		"Purchase Receipt": "PREC-.YYYY.-",
		"Stock Entry":      "STE-.YYYY.-",
		"Material Request": "MAT-.YYYY.-",
		"Quotation":        "QUO-.YYYY.-",
		"Work Order":       "WO-.YYYY.-",
	}
}

// Registry resolves naming series patterns per doctype.
type Registry struct {
	series map[string]string
}

// NewRegistry builds a Registry from the supplied configuration.
func NewRegistry(cfg Config) *Registry {
	series := make(map[string]string, len(cfg))
	for doctype, pattern := range cfg {
		series[doctype] = pattern
	}
	return &Registry{series: series}
}

// Pattern returns the naming series for the doctype, falling back to
// DOCTYPE-.YYYY.- when none is configured.
func (r *Registry) Pattern(doctype string) string {
	if pattern, ok := r.series[doctype]; ok {
		return pattern
	}
	upper := strings.ReplaceAll(strings.ToUpper(doctype), " ", "-")
	return upper + "-.YYYY.-"
}

// Expand substitutes .YYYY. .MM. and .DD. tokens with the date components.
func Expand(pattern string, date time.Time) string {
	out := strings.ReplaceAll(pattern, ".YYYY.", fmt.Sprintf("%04d", date.Year()))
	out = strings.ReplaceAll(out, ".MM.", fmt.Sprintf("%02d", int(date.Month())))
	out = strings.ReplaceAll(out, ".DD.", fmt.Sprintf("%02d", date.Day()))
	return out
}

// TxRepository increments naming counters inside a transaction.
type TxRepository interface {
	NextCounter(ctx context.Context, prefix string) (int64, error)
}

// RepositoryPort abstracts transactional counter access.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// Service assigns document numbers.
type Service struct {
	registry *Registry
	repo     RepositoryPort
}

// NewService constructs the numbering service.
func NewService(registry *Registry, repo RepositoryPort) *Service {
	return &Service{registry: registry, repo: repo}
}

// NextNumber reserves and returns the next number for the doctype, e.g.
// SINV-2025-00042. Counters are scoped per expanded prefix, so each fiscal
// period restarts at one.
func (s *Service) NextNumber(ctx context.Context, doctype string, date time.Time) (string, error) {
	var number string
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		number, err = s.NextNumberIn(ctx, tx, doctype, date)
		return err
	})
	return number, err
}

// NextNumberIn reserves the next number using an existing transaction. Used
// by the voucher coordinator so number assignment commits atomically with the
// rest of the submit.
func (s *Service) NextNumberIn(ctx context.Context, tx TxRepository, doctype string, date time.Time) (string, error) {
	if doctype == "" {
		return "", errors.New("numbering: doctype required")
	}
	prefix := strings.TrimRight(Expand(s.registry.Pattern(doctype), date), "-")
	seq, err := tx.NextCounter(ctx, prefix)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%05d", prefix, seq), nil
}
