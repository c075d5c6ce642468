package promo

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/appetit/checkout/internal/domain/money"
)

// Evaluate checks a promocode against a subtotal at a given instant.
// The returned discount is always within [0, subtotal], so applying it
// can never produce a negative total.
func Evaluate(p *Promocode, subtotal money.Money, now time.Time) Result {
	if p == nil || !p.Active {
		return Result{Reason: ReasonInvalidOrInactive}
	}
	if p.ValidFrom != nil && now.Before(*p.ValidFrom) {
		return Result{Reason: ReasonNotStarted}
	}
	if p.ValidTo != nil && now.After(*p.ValidTo) {
		return Result{Reason: ReasonExpired}
	}
	if p.MinSubtotal != nil && subtotal.LessThan(*p.MinSubtotal) {
		return Result{Reason: ReasonMinSubtotal}
	}

	var discount money.Money
	switch p.Kind {
	case KindPercent:
		discount = money.Percent(subtotal, p.Value)
	case KindAmount:
		discount = money.Round2(p.Value)
	default:
		return Result{Reason: ReasonInvalidOrInactive}
	}

	discount = money.ClampNonNegative(money.Min(discount, subtotal))

	return Result{Valid: true, Discount: discount}
}

// Service evaluates codes loaded from a Repository.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a Service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Evaluate resolves code and evaluates it against subtotal. An empty code
// is valid with a zero discount; an unknown code maps to the
// invalid_or_inactive reason rather than an error. Only infrastructure
// failures (storage unreachable) surface as errors.
func (s *Service) Evaluate(ctx context.Context, code string, subtotal money.Money) (Result, error) {
	if code == "" {
		return Result{Valid: true, Discount: money.Zero}, nil
	}

	p, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Result{Reason: ReasonInvalidOrInactive}, nil
		}
		return Result{}, errors.Wrap(err, "lookup promocode")
	}

	return Evaluate(p, subtotal, s.now()), nil
}
