package testutil

import (
	"context"
	"os"

	"github.com/stretchr/testify/suite"
	"github.com/uptrace/bun"

	"github.com/meridian-ai/meridian/pkg/auth"
)

// BaseSuite wires a testify suite to a cloned database and an in-process
// server. Every test runs inside its own transaction and gets a freshly
// minted all-scopes token, so tests never observe each other's writes.
//
// Setting TEST_SERVER_URL switches the suite to an already running server;
// TEST_API_TOKEN supplies the credential in that mode. Database-backed
// assertions are only available in-process.
//
//	type GraphSuite struct {
//	    testutil.BaseSuite
//	}
//
//	func (s *GraphSuite) TestStats() {
//	    resp := s.Client.GET("/api/graph/stats", testutil.WithAuth(s.Token))
//	}
type BaseSuite struct {
	suite.Suite

	TestDB *TestDB
	Server *TestServer
	Client *HTTPClient
	Ctx    context.Context

	// Token is minted per test with every scope.
	Token string

	dbSuffix       string
	externalServer bool
}

// SetDBSuffix names the suite's database; call it before BaseSuite.SetupSuite.
func (s *BaseSuite) SetDBSuffix(suffix string) {
	s.dbSuffix = suffix
}

func (s *BaseSuite) SetupSuite() {
	s.Ctx = context.Background()

	if serverURL := os.Getenv("TEST_SERVER_URL"); serverURL != "" {
		s.T().Logf("Using external server: %s", serverURL)
		s.externalServer = true
		s.Client = NewExternalHTTPClient(serverURL)
		s.Token = os.Getenv("TEST_API_TOKEN")

		// Direct DB assertions against the external stack are best-effort.
		if os.Getenv("POSTGRES_PORT") != "" {
			db, err := SetupTestDB(s.Ctx, "external")
			if err != nil {
				s.T().Logf("Failed to setup external DB connection: %v", err)
			} else {
				s.TestDB = db
			}
		}
		return
	}

	suffix := s.dbSuffix
	if suffix == "" {
		suffix = "test"
	}

	testDB, err := SetupTestDB(s.Ctx, suffix)
	s.Require().NoError(err, "Failed to setup test database")
	s.TestDB = testDB

	// SetupTest rebuilds the server around the per-test transaction; this one
	// exists so suite-level hooks can reach a working server too.
	s.Server = NewTestServer(testDB)
	s.Client = NewHTTPClient(s.Server.Echo)
}

func (s *BaseSuite) TearDownSuite() {
	if s.TestDB != nil {
		s.TestDB.Close()
	}
}

// SetupTest opens the per-test transaction, points a fresh server at it and
// mints the all-scopes token. In external mode TEST_API_TOKEN already covers
// authentication and nothing is done here.
func (s *BaseSuite) SetupTest() {
	if s.externalServer {
		return
	}

	err := s.TestDB.BeginTestTx(s.Ctx)
	s.Require().NoError(err, "Failed to begin test transaction")

	db := s.TestDB.GetDB()
	s.Server = newTestServerWithDB(s.TestDB, db)
	s.Client = NewHTTPClient(s.Server.Echo)

	token, err := MintTestToken(s.Ctx, db, "base-suite", auth.GetAllScopes())
	s.Require().NoError(err, "Failed to mint test token")
	s.Token = token
}

// TearDownTest rolls the transaction back, discarding everything the test
// wrote.
func (s *BaseSuite) TearDownTest() {
	if s.externalServer {
		return
	}
	_ = s.TestDB.RollbackTestTx()
}

// DB returns the handle queries should go through, nil in external mode.
func (s *BaseSuite) DB() bun.IDB {
	if s.externalServer {
		return nil
	}
	return s.TestDB.GetDB()
}

// IsExternal reports whether the suite targets an external server.
func (s *BaseSuite) IsExternal() bool {
	return s.externalServer
}

// SkipIfExternalServer skips tests that need direct database access or
// exercise services not reachable over HTTP.
func (s *BaseSuite) SkipIfExternalServer(reason string) {
	if s.externalServer {
		s.T().Skipf("Skipping in external server mode: %s", reason)
	}
}
