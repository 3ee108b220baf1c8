package utils

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"enoriel/autos/internal/db"

	"github.com/glebarez/sqlite"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/gorm"
)

var testMongoURI string

func init() {
	loadTestEnv()
}

// loadTestEnv loads the .env file from the project root, falling back to the current directory.
func loadTestEnv() {
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "..", "..")
	if err := godotenv.Load(filepath.Join(projectRoot, ".env")); err != nil {
		godotenv.Load()
	}
	testMongoURI = os.Getenv("MONGO_URI")
}

// SetupTestLedger returns a fresh, migrated in-memory ledger. The pool is pinned to one
// connection so every statement sees the same database; callers must not touch the outer
// handle while a transaction is open.
func SetupTestLedger(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: db.NewLedgerLogger("silent")})
	require.NoError(t, err, "Failed to open test ledger")

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.MigrateLedger(gdb))
	return gdb
}

// SetupTestDB creates a test MongoDB database connection and drops the given collections.
// The test is skipped when MONGO_URI is not configured.
func SetupTestDB(t *testing.T, dbName string, collections ...string) *mongo.Database {
	t.Helper()
	if testMongoURI == "" {
		t.Skip("MONGO_URI not set, skipping MongoDB-backed test")
	}
	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI(testMongoURI))
	require.NoError(t, err, "Failed to connect to MongoDB")
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })
	mdb := client.Database(dbName)

	for _, collection := range collections {
		_ = mdb.Collection(collection).Drop(context.Background())
	}

	return mdb
}
