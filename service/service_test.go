package service

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/libgiveaway-go/config"
	"github.com/bitfsorg/libgiveaway-go/custody"
	"github.com/bitfsorg/libgiveaway-go/factory"
	"github.com/bitfsorg/libgiveaway-go/giveaway"
	"github.com/bitfsorg/libgiveaway-go/ledger"
	"github.com/bitfsorg/libgiveaway-go/logger"
	"github.com/bitfsorg/libgiveaway-go/paymail"
	"github.com/bitfsorg/libgiveaway-go/store"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func makeAddr(seed byte) ledger.Address {
	var a ledger.Address
	for i := range a {
		a[i] = seed
	}
	return a
}

var (
	admin   = makeAddr(0xAD)
	creator = makeAddr(0xC1)
	alice   = makeAddr(0xA1)
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Network = "testnet"
	cfg.Admin = admin.String()
	return cfg
}

func open(t *testing.T, cfg config.Config, opts ...Option) *Service {
	t.Helper()
	opts = append([]Option{WithLogger(logger.Nop())}, opts...)
	s, err := OpenConfig(context.Background(), cfg, opts...)
	require.NoError(t, err)
	return s
}

// fund mints and approves enough for the creator to open giveaways.
func fund(t *testing.T, s *Service, tokenID string) *ledger.BoltToken {
	t.Helper()
	ctx := context.Background()
	tok, err := s.BoltToken(tokenID)
	require.NoError(t, err)
	require.NoError(t, tok.Mint(ctx, creator, 1_000_000))
	require.NoError(t, tok.Approve(ctx, creator, s.Registry.Address(), 1_000_000))
	return tok
}

func TestOpenConfig_CreatesRegistry(t *testing.T) {
	cfg := testConfig(t)
	s := open(t, cfg)
	defer s.Close()

	want, err := RegistryAddress(admin)
	require.NoError(t, err)
	assert.Equal(t, want, s.Registry.Address())
	assert.NotEqual(t, admin, s.Registry.Address())
	assert.Equal(t, admin, s.Registry.Admin())
	assert.Equal(t, admin, s.Registry.FeeAddress())
	assert.Equal(t, uint64(100), s.Registry.FeeRateBps())
	assert.Equal(t, uint64(0), s.Registry.NumGiveaways())
	assert.NoError(t, s.Err())

	_, err = os.Stat(filepath.Join(cfg.DataDir, storeFile))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(cfg.DataDir, ledgerFile))
	assert.NoError(t, err)
}

func TestOpenConfig_ExplicitAccounts(t *testing.T) {
	cfg := testConfig(t)
	self := makeAddr(0xF0)
	fee := makeAddr(0xFE)
	cfg.Registry = self.String()
	cfg.FeeAddress = fee.String()
	cfg.FeeRateBps = 250

	s := open(t, cfg)
	defer s.Close()

	assert.Equal(t, self, s.Registry.Address())
	assert.Equal(t, fee, s.Registry.FeeAddress())
	assert.Equal(t, uint64(250), s.Registry.FeeRateBps())
}

func TestOpenConfig_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Admin = ""
	_, err := OpenConfig(context.Background(), cfg)
	assert.ErrorIs(t, err, config.ErrMissingAdmin)

	cfg = testConfig(t)
	cfg.Admin = "not-an-address"
	_, err = OpenConfig(context.Background(), cfg, WithLogger(logger.Nop()))
	assert.ErrorIs(t, err, ledger.ErrInvalidAddress)

	// The failed open released the lock.
	s := open(t, testConfig(t))
	require.NoError(t, s.Close())
}

func TestOpen_ReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.DataDir = "/elsewhere"
	cfg.Network = "regtest"
	cfg.Admin = admin.String()
	cfg.FeeRateBps = 0
	require.NoError(t, config.SaveConfig(config.ConfigPath(dir), cfg))

	s, err := Open(context.Background(), dir, WithLogger(logger.Nop()))
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, dir, s.Config.DataDir)
	assert.Equal(t, uint64(0), s.Registry.FeeRateBps())
}

func TestOpen_MissingConfig(t *testing.T) {
	_, err := Open(context.Background(), t.TempDir())
	assert.ErrorIs(t, err, config.ErrConfigNotFound)
}

func TestOpenConfig_DataDirLocked(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("no cross-process lock on Windows")
	}
	cfg := testConfig(t)
	s := open(t, cfg)

	_, err := OpenConfig(context.Background(), cfg, WithLogger(logger.Nop()))
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, s.Close())
	s = open(t, cfg)
	require.NoError(t, s.Close())
}

func TestService_StatePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	s := open(t, cfg)
	tok := fund(t, s, "GIFT")
	g, err := s.Registry.CreateGiveaway(ctx, creator, tok, giveaway.Params{
		ShareAmount: 1000, RecipientCount: 10, Slug: "launch", Description: "launch week",
	})
	require.NoError(t, err)
	require.NoError(t, g.SetAuthenticated(ctx, creator, alice, true))
	require.NoError(t, g.SetStatus(ctx, creator, giveaway.Active))
	require.NoError(t, g.SetBanner(ctx, creator, "https://example.com/banner.png"))
	require.NoError(t, g.ClaimTokens(ctx, alice, "@alice"))
	require.NoError(t, s.Err())
	escrow := g.Address()
	require.NoError(t, s.Close())

	s = open(t, cfg)
	defer s.Close()
	require.Equal(t, uint64(1), s.Registry.NumGiveaways())

	restored, err := s.Registry.BySlug("launch")
	require.NoError(t, err)
	assert.Equal(t, escrow, restored.Address())
	assert.Equal(t, giveaway.Active, restored.Status())
	assert.Equal(t, "https://example.com/banner.png", restored.Banner())
	assert.Equal(t, "launch week", restored.Description())
	assert.True(t, restored.HasClaimed(alice))
	assert.Equal(t, uint64(1), restored.ClaimedCount())
	assert.Equal(t, uint64(9000), restored.Remaining())
	assert.NoError(t, restored.Audit(ctx))

	// Balances live in the ledger database.
	bal, err := restored.Token().BalanceOf(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), bal)

	assert.ErrorIs(t, restored.ClaimTokens(ctx, alice, "@alice"), giveaway.ErrAlreadyClaimed)

	_, err = s.Registry.CreateGiveaway(ctx, creator, restored.Token(), giveaway.Params{ShareAmount: 1, RecipientCount: 1, Slug: "launch"})
	assert.ErrorIs(t, err, factory.ErrSlugTaken)
}

func TestService_CheckpointsToStore(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	s := open(t, cfg)
	tok := fund(t, s, "GIFT")
	_, err := s.Registry.CreateGiveaway(ctx, creator, tok, giveaway.Params{ShareAmount: 10, RecipientCount: 2, Slug: "one"})
	require.NoError(t, err)
	_, err = s.Registry.CreateGiveaway(ctx, creator, tok, giveaway.Params{ShareAmount: 10, RecipientCount: 2, Slug: "two"})
	require.NoError(t, err)
	idx, err := s.Store.LookupSlug("two")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), idx)
	require.NoError(t, s.Close())

	st, err := store.OpenBoltStore(filepath.Join(cfg.DataDir, storeFile))
	require.NoError(t, err)
	defer st.Close()
	snap, err := st.LoadRegistry()
	require.NoError(t, err)
	assert.Len(t, snap.Giveaways, 2)
	assert.Equal(t, uint64(2), snap.Nonce)
}

func TestOpenConfig_RegistryMismatch(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, open(t, cfg).Close())

	cfg.Admin = makeAddr(0xBB).String()
	_, err := OpenConfig(context.Background(), cfg, WithLogger(logger.Nop()))
	assert.ErrorIs(t, err, ErrRegistryMismatch)
}

func TestOpenConfig_RestoreKeepsPersistedFeeSettings(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	s := open(t, cfg)
	newFee := makeAddr(0xFE)
	require.NoError(t, s.Registry.ChangeFeeAddress(ctx, admin, newFee))
	require.NoError(t, s.Close())

	cfg.FeeRateBps = 500
	s = open(t, cfg)
	defer s.Close()
	assert.Equal(t, newFee, s.Registry.FeeAddress())
	assert.Equal(t, uint64(100), s.Registry.FeeRateBps())
}

func TestOpenConfig_HDCustody(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Custody = config.CustodyHD
	cfg.HDAccount = 2
	cfg.MnemonicFile = filepath.Join(t.TempDir(), "mnemonic")
	require.NoError(t, os.WriteFile(cfg.MnemonicFile, []byte(testMnemonic+"\n"), 0600))

	s := open(t, cfg)
	defer s.Close()
	tok := fund(t, s, "GIFT")
	g, err := s.Registry.CreateGiveaway(ctx, creator, tok, giveaway.Params{ShareAmount: 5, RecipientCount: 4, Slug: "hd"})
	require.NoError(t, err)

	seed, err := custody.SeedFromMnemonic(testMnemonic, "")
	require.NoError(t, err)
	hd, err := custody.NewHDCustody(seed, false, 2)
	require.NoError(t, err)
	want, err := hd.EscrowAddress(0)
	require.NoError(t, err)
	assert.Equal(t, want, g.Address())
}

func TestOpenConfig_HDCustodyErrors(t *testing.T) {
	cfg := testConfig(t)
	cfg.Custody = config.CustodyHD
	cfg.MnemonicFile = filepath.Join(t.TempDir(), "missing")
	_, err := OpenConfig(context.Background(), cfg, WithLogger(logger.Nop()))
	assert.ErrorIs(t, err, ErrReadMnemonic)

	cfg = testConfig(t)
	cfg.Custody = config.CustodyHD
	cfg.MnemonicFile = filepath.Join(t.TempDir(), "mnemonic")
	require.NoError(t, os.WriteFile(cfg.MnemonicFile, []byte("not a mnemonic"), 0600))
	_, err = OpenConfig(context.Background(), cfg, WithLogger(logger.Nop()))
	assert.ErrorIs(t, err, custody.ErrInvalidMnemonic)
}

func TestOpenConfig_WithTokens(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	tok := ledger.NewMemToken("MEM")

	s := open(t, cfg, WithTokens(ledger.NewTokenSet(tok)))
	_, err := s.BoltToken("MEM")
	assert.ErrorIs(t, err, ledger.ErrUnknownToken)

	require.NoError(t, tok.Mint(ctx, creator, 100))
	require.NoError(t, tok.Approve(ctx, creator, s.Registry.Address(), 100))
	_, err = s.Registry.CreateGiveaway(ctx, creator, tok, giveaway.Params{ShareAmount: 10, RecipientCount: 5, Slug: "mem"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = os.Stat(filepath.Join(cfg.DataDir, ledgerFile))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	// Restoring needs the same token.
	_, err = OpenConfig(ctx, cfg, WithLogger(logger.Nop()), WithTokens(ledger.NewTokenSet()))
	assert.ErrorIs(t, err, ledger.ErrUnknownToken)

	s = open(t, cfg, WithTokens(ledger.NewTokenSet(tok)))
	defer s.Close()
	got, err := s.Token("MEM")
	require.NoError(t, err)
	assert.Same(t, tok, got)
}

func TestService_MetricsRegistered(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	s := open(t, testConfig(t), WithRegisterer(reg))
	defer s.Close()

	tok := fund(t, s, "GIFT")
	_, err := s.Registry.CreateGiveaway(ctx, creator, tok, giveaway.Params{ShareAmount: 10, RecipientCount: 2, Slug: "m"})
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if c := m.GetCounter(); c != nil && len(m.GetLabel()) == 0 {
				values[mf.GetName()] = c.GetValue()
			}
		}
	}
	assert.Equal(t, float64(1), values["giveaway_created_total"])
	assert.Equal(t, float64(20), values["giveaway_pooled_tokens_total"])
}

// handlerClient serves paymail requests in-process.
type handlerClient struct {
	h http.Handler
}

func (c handlerClient) Do(req *http.Request) (*http.Response, error) {
	rec := httptest.NewRecorder()
	c.h.ServeHTTP(rec, req)
	return rec.Result(), nil
}

type noSRV struct{}

func (noSRV) LookupSRV(context.Context, string, string, string) (string, []*net.SRV, error) {
	return "", nil, errors.New("no such host")
}

func TestOpenConfig_PaymailAdmin(t *testing.T) {
	priv, err := ec.NewPrivateKey()
	require.NoError(t, err)
	pubHex := hex.EncodeToString(priv.PubKey().Compressed())
	want, err := ledger.AddressFromPublicKey(priv.PubKey())
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/bsvalias", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"bsvalias":     "1.0",
			"capabilities": map[string]any{"pki": "https://example.com/id/{alias}@{domain.tld}"},
		})
	})
	mux.HandleFunc("/id/", func(w http.ResponseWriter, r *http.Request) {
		handle := strings.TrimPrefix(r.URL.Path, "/id/")
		_ = json.NewEncoder(w).Encode(paymail.PKIResponse{BSVAlias: "1.0", Handle: handle, PubKey: pubHex})
	})

	cfg := testConfig(t)
	cfg.Admin = "boss@example.com"
	s := open(t, cfg, WithHTTPClient(handlerClient{mux}), WithDNSResolver(noSRV{}))
	defer s.Close()

	assert.Equal(t, want, s.Registry.Admin())
	assert.Equal(t, want, s.Registry.FeeAddress())

	got, err := s.ResolveAddress(context.Background(), "boss@example.com")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRegistryAddress_Deterministic(t *testing.T) {
	a, err := RegistryAddress(admin)
	require.NoError(t, err)
	b, err := RegistryAddress(admin)
	require.NoError(t, err)
	c, err := RegistryAddress(makeAddr(0xBB))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.False(t, a.IsZero())
}

func TestOpenConfig_StaleRecordFailsAudit(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	s := open(t, cfg)
	tok := fund(t, s, "GIFT")
	g, err := s.Registry.CreateGiveaway(ctx, creator, tok, giveaway.Params{ShareAmount: 1000, RecipientCount: 10, Slug: "launch"})
	require.NoError(t, err)
	require.NoError(t, g.SetAuthenticated(ctx, creator, alice, true))
	require.NoError(t, g.SetStatus(ctx, creator, giveaway.Active))
	require.NoError(t, g.ClaimTokens(ctx, alice, "@alice"))
	require.NoError(t, s.Close())

	// Roll the record back to before the claim, as a missed checkpoint would.
	st, err := store.OpenBoltStore(filepath.Join(cfg.DataDir, storeFile))
	require.NoError(t, err)
	snap, err := st.LoadRegistry()
	require.NoError(t, err)
	rec := snap.Giveaways[0]
	rec.Claimed, rec.UsedIdentities, rec.ClaimedCount = nil, nil, 0
	require.NoError(t, st.SaveGiveaway(rec))
	require.NoError(t, st.Close())

	_, err = OpenConfig(ctx, cfg, WithLogger(logger.Nop()))
	assert.ErrorIs(t, err, giveaway.ErrConservationViolated)

	// Nothing was paid twice and the lock was released.
	st, err = store.OpenBoltStore(filepath.Join(cfg.DataDir, storeFile))
	require.NoError(t, err)
	require.NoError(t, st.Close())
	l, err := ledger.OpenBoltLedger(filepath.Join(cfg.DataDir, ledgerFile))
	require.NoError(t, err)
	defer l.Close()
	lt, err := l.Token("GIFT")
	require.NoError(t, err)
	bal, err := lt.BalanceOf(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), bal)
}
