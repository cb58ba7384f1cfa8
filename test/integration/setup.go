package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	handler "github.com/vncsmyrnk/votewatch/internal/adapters/handler/http"
	repo "github.com/vncsmyrnk/votewatch/internal/adapters/repository/postgres"
	"github.com/vncsmyrnk/votewatch/internal/core/domain"
	"github.com/vncsmyrnk/votewatch/internal/core/ports"
	"github.com/vncsmyrnk/votewatch/internal/core/services"
)

const testSecret = "test-secret"

type TestApp struct {
	DB            *sql.DB
	Server        *httptest.Server
	Client        *http.Client
	VoteSvc       ports.VoteService
	Reconciler    ports.ReconciliationService
	AggregateRepo ports.AggregateRepository
	DBContainer   testcontainers.Container
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
		if entry.IsDir() {
			continue
		}

		if !strings.HasSuffix(entry.Name(), "up.sql") {
			continue
		}

		fullPath := filepath.Join(dirPath, entry.Name())
		content, err := os.ReadFile(fullPath)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", entry.Name(), err)
		}

		_, err = db.Exec(string(content))
		if err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", entry.Name(), err)
		}
	}

	return nil
}

func setupTestApp(t *testing.T) *TestApp {
	ctx := context.Background()
	dbContainer, dbURL, err := setupPostgresContainer(ctx)
	require.NoError(t, err)

	db, err := sql.Open("postgres", dbURL)
	require.NoError(t, err)
	db.SetMaxOpenConns(40)

	err = applyMigrations(db)
	require.NoError(t, err)

	electionRepo := repo.NewElectionRepository(db)
	voterRepo := repo.NewVoterRepository(db)
	ballotRepo := repo.NewBallotRepository(db)
	aggregateRepo := repo.NewAggregateRepository(db)
	registry := repo.NewCredentialRegistry(db)

	reconciler := services.NewReconciliationService(ballotRepo, aggregateRepo, services.ReconcilerOptions{
		Grace:          time.Millisecond,
		InitialBackoff: time.Millisecond,
	}, nil)
	voterSvc := services.NewVoterService(registry, voterRepo, nil)
	voteSvc := services.NewVoteService(electionRepo, voterRepo, ballotRepo, aggregateRepo, reconciler, nil)
	resultSvc := services.NewResultService(electionRepo, aggregateRepo)

	router := handler.NewHandler(
		handler.NewVoterHandler(voterSvc, voteSvc),
		handler.NewVoteHandler(voteSvc),
		handler.NewResultHandler(resultSvc),
		[]byte(testSecret),
	)

	server := httptest.NewServer(router)

	return &TestApp{
		DB:            db,
		Server:        server,
		Client:        server.Client(),
		VoteSvc:       voteSvc,
		Reconciler:    reconciler,
		AggregateRepo: aggregateRepo,
		DBContainer:   dbContainer,
	}
}

func (app *TestApp) Teardown(t *testing.T) {
	app.Server.Close()
	app.DB.Close()
	if err := app.DBContainer.Terminate(context.Background()); err != nil {
		t.Logf("failed to terminate container: %v", err)
	}
}

type seededElection struct {
	ID         uuid.UUID
	Candidates []uuid.UUID
}

func (app *TestApp) createElection(t *testing.T, status domain.ElectionStatus, candidates ...string) seededElection {
	t.Helper()

	e := seededElection{ID: uuid.New()}
	_, err := app.DB.Exec("INSERT INTO elections (id, name, status) VALUES ($1, $2, $3)", e.ID, "Election "+e.ID.String()[:8], status)
	require.NoError(t, err)

	for _, name := range candidates {
		id := uuid.New()
		_, err := app.DB.Exec("INSERT INTO candidates (id, election_id, name) VALUES ($1, $2, $3)", id, e.ID, name)
		require.NoError(t, err)
		e.Candidates = append(e.Candidates, id)
	}
	return e
}

func (app *TestApp) registerCredential(t *testing.T, vin, card string, active bool, a domain.GeoAssignment) {
	t.Helper()
	_, err := app.DB.Exec(`
		INSERT INTO credential_registry (credential_hash, card_hash, is_active, polling_unit_id, ward_id, lga_id, state_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, domain.HashCredential(vin), domain.HashCredential(card), active, a.PollingUnitID, a.WardID, a.LGAID, a.StateID)
	require.NoError(t, err)
}

// createVerifiedVoter inserts an already verified voter and returns a
// session token for it.
func (app *TestApp) createVerifiedVoter(t *testing.T, a domain.GeoAssignment) (string, string) {
	t.Helper()

	voterID := "sub-" + uuid.NewString()
	_, err := app.DB.Exec(`
		INSERT INTO voters (id, is_verified, credential_hash, card_hash, polling_unit_id, ward_id, lga_id, state_id, verified_at)
		VALUES ($1, TRUE, $2, $3, $4, $5, $6, $7, NOW())
	`, voterID, domain.HashCredential("VIN-"+voterID), domain.HashCredential("CARD-"+voterID), a.PollingUnitID, a.WardID, a.LGAID, a.StateID)
	require.NoError(t, err)

	return voterID, createToken(t, voterID)
}

func createToken(t *testing.T, voterID string) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub": voterID,
		"exp": time.Now().Add(15 * time.Minute).Unix(),
		"iat": time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signedToken
}

func (app *TestApp) count(t *testing.T, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, app.DB.QueryRow(query, args...).Scan(&n))
	return n
}

func jsonDecode(resp *http.Response, v any) error {
	return json.NewDecoder(resp.Body).Decode(v)
}
