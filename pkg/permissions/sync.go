package permissions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"bldgate/pkg/iam"
)

// Admin is the subset of the identity server admin API used by Sync.
type Admin interface {
	LookupClient(ctx context.Context, clientID string) (string, error)
	ListResources(ctx context.Context, internalID string) ([]iam.Resource, error)
}

// Options configures a Sync.
type Options struct {
	ClientID     string        // public id of the resource-server client
	ClientIDTTL  time.Duration // default 1h
	ProtectedTTL time.Duration // default 3m
	Timeout      time.Duration // per refresh, default 5s
	Snapshot     Snapshot      // optional last-known-good store shared across replicas
	Log          *zap.SugaredLogger
}

// Sync resolves and caches the resource-server client id and its protected set.
type Sync struct {
	clientID  string
	admin     Admin
	snapshot  Snapshot
	log       *zap.SugaredLogger
	ids       *Cache[string]
	protected *Cache[Set]
}

// NewSync wires the two caches against admin.
func NewSync(admin Admin, opts Options) *Sync {
	if opts.ClientIDTTL <= 0 {
		opts.ClientIDTTL = time.Hour
	}
	if opts.ProtectedTTL <= 0 {
		opts.ProtectedTTL = 3 * time.Minute
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop().Sugar()
	}
	s := &Sync{clientID: opts.ClientID, admin: admin, snapshot: opts.Snapshot, log: opts.Log}
	s.ids = NewCache[string]("client_id", opts.ClientIDTTL, s.loadClientID,
		WithTimeout[string](opts.Timeout),
		WithEmpty[string](func(id string) bool { return id == "" }))
	s.protected = NewCache[Set]("protected", opts.ProtectedTTL, s.loadProtected,
		WithTimeout[Set](opts.Timeout),
		WithEmpty[Set](isEmpty),
		WithStaleWhileRevalidate[Set]())
	return s
}

// ClientID returns the internal id of the configured client.
func (s *Sync) ClientID(ctx context.Context) (string, error) {
	return s.ids.Get(ctx)
}

// Protected returns the current protected set. When no value can be produced it
// falls back to the shared snapshot, then to an empty set together with the error
// so callers can apply their failure policy.
func (s *Sync) Protected(ctx context.Context) (Set, error) {
	set, err := s.protected.Get(ctx)
	if err == nil {
		return set, nil
	}
	if ctx.Err() != nil {
		return Set{}, err
	}
	if s.snapshot != nil {
		if snap, ok := s.snapshot.Load(ctx, s.clientID); ok {
			s.log.Warnw("iam refresh failed, serving shared snapshot", "err", err, "pairs", snap.Len())
			return snap, nil
		}
	}
	s.log.Warnw("iam refresh failed, no protected set available", "err", err)
	return Set{}, err
}

// Invalidate drops both cached values.
func (s *Sync) Invalidate() {
	s.ids.Invalidate()
	s.protected.Invalidate()
}

func (s *Sync) loadClientID(ctx context.Context) (string, error) {
	id, err := s.admin.LookupClient(ctx, s.clientID)
	if err != nil {
		s.log.Warnw("iam client lookup failed", "client", s.clientID, "err", err)
		return "", err
	}
	s.log.Infow("iam client resolved", "client", s.clientID)
	return id, nil
}

func (s *Sync) loadProtected(ctx context.Context) (Set, error) {
	id, err := s.ids.Get(ctx)
	if err != nil {
		return Set{}, fmt.Errorf("resolve client id: %w", err)
	}
	res, err := s.admin.ListResources(ctx, id)
	if err != nil {
		if iam.IsNotFound(err) {
			// client was recreated under a new internal id
			s.ids.Invalidate()
		}
		s.log.Warnw("iam resource listing failed", "err", err)
		return Set{}, err
	}
	set := FromResources(res)
	s.log.Infow("iam protected set refreshed", "resources", len(res), "pairs", set.Len())
	if s.snapshot != nil && set.Len() > 0 {
		if err := s.snapshot.Save(ctx, s.clientID, set); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Warnw("protected snapshot save failed", "err", err)
		}
	}
	return set, nil
}

// Static serves a fixed protected set, used when no identity server is configured.
type Static Set

func (s Static) Protected(context.Context) (Set, error) { return Set(s), nil }
