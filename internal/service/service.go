package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"grocertrack/backend/internal/cache"
	"grocertrack/backend/internal/domain"
	"grocertrack/backend/internal/store"
	"grocertrack/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	// LowStockLimit is how many variants the dashboard lists as running low.
	LowStockLimit int
	// CartTTL is how long an untouched cart session survives.
	CartTTL time.Duration
}

type Service struct {
	repo          store.Repository
	carts         cache.CartStore
	lowStockLimit int
	cartTTL       time.Duration
}

func New(repo store.Repository, carts cache.CartStore, opts Options) *Service {
	if carts == nil {
		carts = cache.NewMemoryCartStore()
	}
	if opts.LowStockLimit < 1 {
		opts.LowStockLimit = 3
	}
	if opts.CartTTL <= 0 {
		opts.CartTTL = 4 * time.Hour
	}

	return &Service{
		repo:          repo,
		carts:         carts,
		lowStockLimit: opts.LowStockLimit,
		cartTTL:       opts.CartTTL,
	}
}

func (s *Service) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = 100
	}
	return s.repo.ListAuditLogs(ctx, limit)
}

func requireAdmin(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Actor{}, fmt.Errorf("%w: admin role required", domain.ErrForbidden)
	}
	return actor, nil
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}

// warnOversold logs every listed variant whose stock went below zero. Overselling is
// allowed; this is the only place it surfaces.
func (s *Service) warnOversold(ctx context.Context, variantIDs []string) {
	if len(variantIDs) == 0 {
		return
	}
	variants, err := s.repo.GetVariantsByIDs(ctx, variantIDs)
	if err != nil {
		log.Printf("[service] WARN: failed to check stock after commit: %v", err)
		return
	}
	for _, id := range variantIDs {
		v, ok := variants[id]
		if ok && v.CurrentStock.IsNegative() {
			log.Printf("[service] WARN: variant %s (%s) oversold, stock=%s", v.ID, v.DisplayName(), v.CurrentStock)
		}
	}
}

func requireID(kind string, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%w: %s id is required", domain.ErrValidation, kind)
	}
	return id, nil
}
