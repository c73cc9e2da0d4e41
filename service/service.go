// Package service assembles a giveaway registry from a data directory:
// configuration, logging, metrics, paymail resolution, escrow custody,
// the bbolt-backed ledger and the persisted registry state.
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	bsvhash "github.com/bsv-blockchain/go-sdk/primitives/hash"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bitfsorg/libgiveaway-go/config"
	"github.com/bitfsorg/libgiveaway-go/custody"
	"github.com/bitfsorg/libgiveaway-go/events"
	"github.com/bitfsorg/libgiveaway-go/factory"
	"github.com/bitfsorg/libgiveaway-go/ledger"
	"github.com/bitfsorg/libgiveaway-go/logger"
	"github.com/bitfsorg/libgiveaway-go/metrics"
	"github.com/bitfsorg/libgiveaway-go/paymail"
	"github.com/bitfsorg/libgiveaway-go/store"
)

const (
	lockFile   = "giveaway.lock"
	storeFile  = "giveaway.db"
	ledgerFile = "ledger.db"

	registryDomain = "giveaway-registry"
)

// Service owns one registry and the resources backing it.
type Service struct {
	Config   config.Config
	Registry *factory.Registry
	Store    *store.BoltStore
	Tokens   ledger.TokenResolver
	Resolver *paymail.Resolver
	Metrics  *metrics.Metrics
	Log      logger.Logger

	ledger     *ledger.BoltLedger // nil when tokens come from WithTokens
	checkpoint *store.Checkpointer
	lock       *os.File
}

type options struct {
	registerer prometheus.Registerer
	httpClient paymail.HTTPClient
	dns        paymail.DNSResolver
	log        logger.Logger
	tokens     ledger.TokenResolver
}

// Option customizes Open.
type Option func(*options)

// WithRegisterer registers the service metrics with reg instead of a
// private registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithHTTPClient sets the client used for paymail discovery.
func WithHTTPClient(c paymail.HTTPClient) Option {
	return func(o *options) { o.httpClient = c }
}

// WithDNSResolver overrides the SRV resolver chosen from the config.
func WithDNSResolver(d paymail.DNSResolver) Option {
	return func(o *options) { o.dns = d }
}

// WithLogger overrides the logger built from the config.
func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithTokens resolves giveaway tokens through tokens instead of the ledger
// database in the data directory.
func WithTokens(tokens ledger.TokenResolver) Option {
	return func(o *options) { o.tokens = tokens }
}

// Open loads the config file in dataDir and opens the service.
func Open(ctx context.Context, dataDir string, opts ...Option) (*Service, error) {
	cfg, err := config.LoadConfig(config.ConfigPath(dataDir))
	if err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	cfg.DataDir = dataDir
	return OpenConfig(ctx, cfg, opts...)
}

// OpenConfig opens the service described by cfg. The registry is restored
// from the store in cfg.DataDir, or created and saved on first use.
func OpenConfig(ctx context.Context, cfg config.Config, opts ...Option) (*Service, error) {
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("service: create data dir: %w", err)
	}
	lock, err := tryLock(filepath.Join(cfg.DataDir, lockFile))
	if err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	s := &Service{Config: cfg, lock: lock}

	if s.Log = o.log; s.Log == nil {
		if s.Log, err = logger.New(strings.ToLower(cfg.LogLevel), cfg.PrettyLog); err != nil {
			return nil, s.fail(fmt.Errorf("service: build logger: %w", err))
		}
	}

	s.Resolver = s.newResolver(o)
	admin, feeAddr, self, err := s.resolveAccounts(ctx)
	if err != nil {
		return nil, s.fail(err)
	}

	deriver, err := newCustody(cfg, self)
	if err != nil {
		return nil, s.fail(err)
	}

	if s.Tokens = o.tokens; s.Tokens == nil {
		if s.ledger, err = ledger.OpenBoltLedger(filepath.Join(cfg.DataDir, ledgerFile)); err != nil {
			return nil, s.fail(fmt.Errorf("service: %w", err))
		}
		s.Tokens = ledgerTokens{s.ledger}
	}

	if s.Store, err = store.OpenBoltStore(filepath.Join(cfg.DataDir, storeFile)); err != nil {
		return nil, s.fail(fmt.Errorf("service: %w", err))
	}

	reg := o.registerer
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	s.Metrics = metrics.New(reg)
	s.checkpoint = store.NewCheckpointer(s.Store, s.Log)

	factoryOpts := []factory.Option{
		factory.WithCustody(deriver),
		factory.WithEmitter(events.Multi{events.LogSink{Log: s.Log}, s.Metrics, s.checkpoint}),
		factory.WithLogger(s.Log),
	}
	if s.Registry, err = s.loadRegistry(ctx, admin, feeAddr, self, factoryOpts); err != nil {
		return nil, s.fail(err)
	}
	s.checkpoint.Attach(s.Registry)

	s.Log.Info("giveaway service opened",
		logger.String("data_dir", cfg.DataDir),
		logger.Stringer("registry", self),
		logger.Stringer("admin", admin),
		logger.Int("giveaways", int(s.Registry.NumGiveaways())),
	)
	return s, nil
}

func (s *Service) newResolver(o options) *paymail.Resolver {
	popts := []paymail.Option{paymail.WithLogger(s.Log)}
	if o.httpClient != nil {
		popts = append(popts, paymail.WithHTTPClient(o.httpClient))
	}
	switch {
	case o.dns != nil:
		popts = append(popts, paymail.WithDNSResolver(o.dns))
	case s.Config.DNSSEC:
		popts = append(popts, paymail.WithDNSResolver(paymail.NewDNSSECResolver(s.Config.DNSUpstream)))
	}
	return paymail.NewResolver(popts...)
}

// resolveAccounts turns the configured admin, fee and registry destinations
// into ledger addresses.
func (s *Service) resolveAccounts(ctx context.Context) (admin, feeAddr, self ledger.Address, err error) {
	cfg := s.Config
	if admin, err = s.Resolver.ResolveAddress(ctx, cfg.Admin); err != nil {
		return admin, feeAddr, self, fmt.Errorf("service: resolve admin %q: %w", cfg.Admin, err)
	}

	feeAddr = admin
	if cfg.FeeAddress != "" {
		if feeAddr, err = s.Resolver.ResolveAddress(ctx, cfg.FeeAddress); err != nil {
			return admin, feeAddr, self, fmt.Errorf("service: resolve fee address %q: %w", cfg.FeeAddress, err)
		}
	}

	if cfg.Registry == "" {
		self, err = RegistryAddress(admin)
		return admin, feeAddr, self, err
	}
	if self, err = s.Resolver.ResolveAddress(ctx, cfg.Registry); err != nil {
		return admin, feeAddr, self, fmt.Errorf("service: resolve registry %q: %w", cfg.Registry, err)
	}
	return admin, feeAddr, self, nil
}

// RegistryAddress derives the default registry account for admin as
// hash160(admin || "giveaway-registry").
func RegistryAddress(admin ledger.Address) (ledger.Address, error) {
	buf := make([]byte, 0, ledger.AddressSize+len(registryDomain))
	buf = append(buf, admin[:]...)
	buf = append(buf, registryDomain...)
	return ledger.AddressFromBytes(bsvhash.Hash160(buf))
}

func newCustody(cfg config.Config, self ledger.Address) (custody.Deriver, error) {
	if cfg.Custody != config.CustodyHD {
		return custody.NewHashCustody(self), nil
	}
	data, err := os.ReadFile(cfg.MnemonicFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadMnemonic, err)
	}
	seed, err := custody.SeedFromMnemonic(strings.TrimSpace(string(data)), "")
	if err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	hd, err := custody.NewHDCustody(seed, cfg.Mainnet(), cfg.HDAccount)
	if err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	return hd, nil
}

func (s *Service) loadRegistry(ctx context.Context, admin, feeAddr, self ledger.Address, opts []factory.Option) (*factory.Registry, error) {
	snap, err := s.Store.LoadRegistry()
	if errors.Is(err, store.ErrNotFound) {
		opts = append(opts, factory.WithFeeRateBps(s.Config.FeeRateBps), factory.WithFeeAddress(feeAddr))
		reg, err := factory.New(self, admin, opts...)
		if err != nil {
			return nil, fmt.Errorf("service: create registry: %w", err)
		}
		if err := s.Store.SaveRegistry(reg.Snapshot()); err != nil {
			return nil, fmt.Errorf("service: save registry: %w", err)
		}
		s.Log.Info("registry created", logger.Stringer("registry", self), logger.Uint64("fee_rate_bps", reg.FeeRateBps()))
		return reg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("service: load registry: %w", err)
	}

	if snap.Admin != admin || snap.Address != self {
		return nil, fmt.Errorf("%w: stored registry %s admin %s, configured registry %s admin %s",
			ErrRegistryMismatch, snap.Address, snap.Admin, self, admin)
	}
	reg, err := factory.Restore(snap, s.Tokens, opts...)
	if err != nil {
		return nil, fmt.Errorf("service: restore registry: %w", err)
	}
	// A record that missed a checkpoint no longer matches its escrow.
	if err := reg.Audit(ctx); err != nil {
		return nil, fmt.Errorf("service: restored registry out of sync with ledger: %w", err)
	}
	if reg.FeeAddress() != feeAddr {
		s.Log.Warn("configured fee address ignored, registry keeps its own",
			logger.Stringer("configured", feeAddr), logger.Stringer("registry", reg.FeeAddress()))
	}
	if reg.FeeRateBps() != s.Config.FeeRateBps {
		s.Log.Warn("configured fee rate ignored, registry keeps its own",
			logger.Uint64("configured", s.Config.FeeRateBps), logger.Uint64("registry", reg.FeeRateBps()))
	}
	return reg, nil
}

// ResolveAddress parses a ledger address or resolves a paymail handle.
func (s *Service) ResolveAddress(ctx context.Context, addr string) (ledger.Address, error) {
	return s.Resolver.ResolveAddress(ctx, addr)
}

// Token looks up a token by ID.
func (s *Service) Token(id string) (ledger.Token, error) {
	return s.Tokens.Token(id)
}

// Err returns the first checkpoint failure since Open.
func (s *Service) Err() error {
	return s.checkpoint.Err()
}

// Close releases the databases and the data directory lock. If a checkpoint
// failed since Open, the full registry is saved first.
func (s *Service) Close() error {
	var errs []error
	if s.checkpoint != nil && s.Store != nil && s.checkpoint.Stale() {
		if err := s.checkpoint.Resync(); err != nil {
			errs = append(errs, fmt.Errorf("service: %w", err))
		}
	}
	if s.Store != nil {
		if err := s.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("service: close store: %w", err))
		}
		s.Store = nil
	}
	if s.ledger != nil {
		if err := s.ledger.Close(); err != nil {
			errs = append(errs, fmt.Errorf("service: close ledger: %w", err))
		}
		s.ledger = nil
	}
	releaseLock(s.lock)
	s.lock = nil
	if s.Log != nil {
		_ = s.Log.Sync()
	}
	return errors.Join(errs...)
}

func (s *Service) fail(err error) error {
	return errors.Join(err, s.Close())
}

// ledgerTokens adapts BoltLedger to ledger.TokenResolver.
type ledgerTokens struct {
	l *ledger.BoltLedger
}

func (t ledgerTokens) Token(id string) (ledger.Token, error) {
	tok, err := t.l.Token(id)
	if err != nil {
		return nil, err
	}
	return tok, nil
}

// BoltToken returns a mintable token from the service ledger database.
// It fails when tokens were supplied with WithTokens.
func (s *Service) BoltToken(id string) (*ledger.BoltToken, error) {
	if s.ledger == nil {
		return nil, fmt.Errorf("%w: no ledger database", ledger.ErrUnknownToken)
	}
	return s.ledger.Token(id)
}
