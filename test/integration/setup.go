package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	handler "github.com/vncsmyrnk/mcvotes/internal/adapters/handler/http"
	"github.com/vncsmyrnk/mcvotes/internal/adapters/realtime"
	repo "github.com/vncsmyrnk/mcvotes/internal/adapters/repository/postgres"
	"github.com/vncsmyrnk/mcvotes/internal/adapters/webhook"
	"github.com/vncsmyrnk/mcvotes/internal/core/services"
	"github.com/vncsmyrnk/mcvotes/internal/metrics"
)

const jwtSecret = "test-secret"

type TestApp struct {
	DB          *sql.DB
	Server      *httptest.Server
	Client      *http.Client
	Hub         *realtime.Hub
	Webhooks    *webhookRecorder
	DBContainer testcontainers.Container

	dispatcher *webhook.Dispatcher
	cancel     context.CancelFunc
}

// webhookRecorder stands in for Discord and keeps every payload it receives.
type webhookRecorder struct {
	server *httptest.Server

	mu       sync.Mutex
	payloads []map[string]any
}

func newWebhookRecorder() *webhookRecorder {
	rec := &webhookRecorder{}
	rec.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var payload map[string]any
		json.Unmarshal(body, &payload)

		rec.mu.Lock()
		rec.payloads = append(rec.payloads, payload)
		rec.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	return rec
}

func (rec *webhookRecorder) URL() string {
	return rec.server.URL + "/api/webhooks/1/token"
}

func (rec *webhookRecorder) received() []map[string]any {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return append([]map[string]any{}, rec.payloads...)
}

func setupPostgresContainer(ctx context.Context) (testcontainers.Container, string, error) {
	dbName := "testdb"
	user := "user"
	password := "password"

	pgContainer, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(user),
		postgres.WithPassword(password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, "", err
	}

	return pgContainer, connStr, nil
}

func applyMigrations(db *sql.DB) error {
	dirPath := "../../internal/adapters/repository/postgres/migrations"

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), "up.sql") {
			continue
		}

		content, err := os.ReadFile(filepath.Join(dirPath, entry.Name()))
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", entry.Name(), err)
		}

		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", entry.Name(), err)
		}
	}

	return nil
}

func setupTestApp(t *testing.T) *TestApp {
	ctx, cancel := context.WithCancel(context.Background())
	dbContainer, dbURL, err := setupPostgresContainer(ctx)
	require.NoError(t, err)

	db, err := sql.Open("postgres", dbURL)
	require.NoError(t, err)

	err = applyMigrations(db)
	require.NoError(t, err)

	serverRepo := repo.NewServerRepository(db)
	voteRepo := repo.NewVoteRepository(db)
	tokenRepo := repo.NewServerTokenRepository(db)

	metricService := metrics.NewMetricService()
	hub := realtime.NewHub([]string{"*"}, metricService, nil)
	dispatcher := webhook.NewDispatcher(webhook.Options{
		Workers:   2,
		QueueSize: 16,
		Attempts:  2,
		Backoff:   10 * time.Millisecond,
		Timeout:   2 * time.Second,
	}, metricService, nil)
	dispatcher.Start(ctx)

	clock := services.NewSystemClock()
	voteSvc := services.NewVoteService(services.VoteServiceDeps{
		UnitOfWork: repo.NewUnitOfWork(db),
		Servers:    serverRepo,
		Votes:      voteRepo,
		Notifier:   hub,
		Webhooks:   dispatcher,
		Metrics:    metricService,
		Clock:      clock,
	})
	statsSvc := services.NewStatsService(serverRepo, voteRepo, metricService, clock, nil)
	agentAuth := services.NewAgentAuthService(tokenRepo, serverRepo, clock, nil)

	router := handler.NewHandler(
		handler.NewVoteHandler(voteSvc),
		handler.NewStatsHandler(statsSvc),
		handler.NewAgentHandler(voteSvc, statsSvc),
		handler.RouterConfig{
			JWTSecret:      jwtSecret,
			AllowedOrigins: []string{"*"},
			Agents:         agentAuth,
			Realtime:       hub.ServeWS,
			Metrics:        metricService.Handler(),
		},
	)
	server := httptest.NewServer(router)

	return &TestApp{
		DB:          db,
		Server:      server,
		Client:      server.Client(),
		Hub:         hub,
		Webhooks:    newWebhookRecorder(),
		DBContainer: dbContainer,
		dispatcher:  dispatcher,
		cancel:      cancel,
	}
}

func (app *TestApp) Teardown(t *testing.T) {
	app.Server.Close()
	app.Webhooks.server.Close()

	stopCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	app.dispatcher.Stop(stopCtx)
	app.cancel()

	app.DB.Close()
	if err := app.DBContainer.Terminate(context.Background()); err != nil {
		t.Logf("failed to terminate container: %v", err)
	}
}

// createUserAndToken inserts a platform account and signs an access token
// for it.
func (app *TestApp) createUserAndToken(t *testing.T, admin bool) (uuid.UUID, string) {
	t.Helper()

	userID := uuid.New()
	email := fmt.Sprintf("user-%s@example.com", userID)
	name := fmt.Sprintf("User %s", userID)
	_, err := app.DB.Exec("INSERT INTO users (id, email, name, is_admin) VALUES ($1, $2, $3, $4)", userID, email, name, admin)
	require.NoError(t, err)

	claims := jwt.MapClaims{
		"sub":   userID.String(),
		"email": email,
		"admin": admin,
		"exp":   time.Now().Add(15 * time.Minute).Unix(),
		"iat":   time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return userID, signedToken
}

type serverSeed struct {
	status     string
	webhookURL string
}

func (app *TestApp) createServer(t *testing.T, seed serverSeed) uuid.UUID {
	t.Helper()

	ownerID, _ := app.createUserAndToken(t, false)
	if seed.status == "" {
		seed.status = "approved"
	}

	serverID := uuid.New()
	slug := "server-" + serverID.String()[:8]
	var webhookURL sql.NullString
	if seed.webhookURL != "" {
		webhookURL = sql.NullString{String: seed.webhookURL, Valid: true}
	}

	_, err := app.DB.Exec(`
		INSERT INTO servers (id, owner_id, name, slug, address, status, webhook_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		serverID, ownerID, "Server "+slug, slug, slug+".example", seed.status, webhookURL)
	require.NoError(t, err)
	return serverID
}

// createServerToken stores an agent credential and returns its plaintext.
func (app *TestApp) createServerToken(t *testing.T, serverID uuid.UUID, paired, active bool) string {
	t.Helper()

	plain := "mcv_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	_, err := app.DB.Exec(`
		INSERT INTO server_tokens (server_id, token_hash, is_paired, is_active)
		VALUES ($1, $2, $3, $4)`,
		serverID, services.HashToken(plain), paired, active)
	require.NoError(t, err)
	return plain
}

func (app *TestApp) createReward(t *testing.T, serverID uuid.UUID, name string, chance int, commands []string) uuid.UUID {
	t.Helper()

	rewardID := uuid.New()
	_, err := app.DB.Exec(`
		INSERT INTO rewards (id, server_id, name, reward_type, commands, chance)
		VALUES ($1, $2, $3, 'command', $4, $5)`,
		rewardID, serverID, name, pq.Array(commands), chance)
	require.NoError(t, err)
	return rewardID
}

// pairedServer creates an approved server with an active paired agent token.
func (app *TestApp) pairedServer(t *testing.T, seed serverSeed) (uuid.UUID, string) {
	t.Helper()
	serverID := app.createServer(t, seed)
	return serverID, app.createServerToken(t, serverID, true, true)
}
