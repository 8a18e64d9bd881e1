package services

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fastid/fastid/internal/cryptox"
	"github.com/fastid/fastid/internal/dbx"
	"github.com/fastid/fastid/internal/logging"
	"github.com/fastid/fastid/internal/server/config"
	"github.com/fastid/fastid/internal/server/repositories/repomanager"
)

var cheapParams = cryptox.Params{Time: 1, MemoryKiB: 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SecretKey = "test-secret"
	cfg.AccessTokenTTL = 15 * time.Minute
	cfg.RefreshTokenTTL = 24 * time.Hour
	return cfg
}

type testEnv struct {
	db     *sql.DB
	rm     *repomanager.SQLRepositoryManager
	clock  *fakeClock
	hasher *cryptox.Hasher
	tokens *TokenService
	auth   *AuthService
	setup  *SetupGuard
	users  *UserService
}

// newTestEnv wires the services over a migrated SQLite file database.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, d, err := dbx.Open(dbx.DriverSQLite, filepath.Join(t.TempDir(), "fastid.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rm := repomanager.NewSQLRepositoryManager(d)
	require.NoError(t, rm.RunMigrations(context.Background(), db))

	log := logging.NewNop()
	clock := &fakeClock{now: time.Now().UTC().Truncate(time.Second)}
	hasher := cryptox.NewHasherWithParams(cheapParams, 4)
	tokens := NewTokenService(db, rm, testConfig(), log).WithClock(clock.Now)

	return &testEnv{
		db:     db,
		rm:     rm,
		clock:  clock,
		hasher: hasher,
		tokens: tokens,
		auth:   NewAuthService(db, rm, tokens, hasher, log),
		setup:  NewSetupGuard(db, rm, tokens, hasher, log),
		users:  NewUserService(db, rm, hasher, log),
	}
}

func (e *testEnv) count(t *testing.T, table string) int {
	t.Helper()
	var n int
	require.NoError(t, e.db.QueryRow(`SELECT COUNT(*) FROM `+table).Scan(&n))
	return n
}
