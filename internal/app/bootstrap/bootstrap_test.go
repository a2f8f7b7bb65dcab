package bootstrap

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/wolfman30/lead-crm/internal/config"
	"github.com/wolfman30/lead-crm/internal/leads"
	"github.com/wolfman30/lead-crm/pkg/logging"
)

func staticAWS(ctx context.Context) (aws.Config, error) {
	return aws.Config{Region: "us-east-1"}, nil
}

func failingAWS(ctx context.Context) (aws.Config, error) {
	return aws.Config{}, errors.New("no credentials")
}

func TestBuildLeadStoreBackends(t *testing.T) {
	logger := logging.New("error")
	dir := t.TempDir()

	tests := []struct {
		name    string
		cfg     *appconfig.Config
		loadAWS AWSConfigLoader
		want    any
	}{
		{"memory", &appconfig.Config{StoreBackend: appconfig.BackendMemory}, nil, &leads.MemoryStore{}},
		{"file", &appconfig.Config{StoreBackend: appconfig.BackendFile, DataFile: filepath.Join(dir, "leads.json")}, nil, &leads.FileStore{}},
		{"sqlite", &appconfig.Config{StoreBackend: appconfig.BackendSQLite, SQLitePath: filepath.Join(dir, "crm.db")}, nil, &leads.SQLiteStore{}},
		{"dynamodb", &appconfig.Config{StoreBackend: appconfig.BackendDynamoDB, LeadsTable: "crm_leads"}, staticAWS, &leads.DynamoStore{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store, cleanup, err := BuildLeadStore(context.Background(), tc.cfg, tc.loadAWS, logger)
			require.NoError(t, err)
			require.NotNil(t, cleanup)
			defer cleanup()
			assert.IsType(t, tc.want, store)
		})
	}
}

func TestBuildLeadStoreErrors(t *testing.T) {
	logger := logging.New("error")
	ctx := context.Background()

	_, _, err := BuildLeadStore(ctx, nil, nil, logger)
	assert.Error(t, err)

	_, _, err = BuildLeadStore(ctx, &appconfig.Config{StoreBackend: "mongo"}, nil, logger)
	assert.ErrorContains(t, err, "unknown store backend")

	_, _, err = BuildLeadStore(ctx, &appconfig.Config{StoreBackend: appconfig.BackendDynamoDB}, nil, logger)
	assert.Error(t, err)

	_, _, err = BuildLeadStore(ctx, &appconfig.Config{StoreBackend: appconfig.BackendDynamoDB}, failingAWS, logger)
	assert.ErrorContains(t, err, "no credentials")

	_, _, err = BuildLeadStore(ctx, &appconfig.Config{StoreBackend: appconfig.BackendPostgres, DatabaseURL: "://bad"}, nil, logger)
	assert.Error(t, err)
}

func TestNeedsAWS(t *testing.T) {
	assert.False(t, NeedsAWS(nil))
	assert.False(t, NeedsAWS(&appconfig.Config{StoreBackend: appconfig.BackendFile, EmailProvider: "none"}))
	assert.True(t, NeedsAWS(&appconfig.Config{StoreBackend: appconfig.BackendDynamoDB}))
	assert.True(t, NeedsAWS(&appconfig.Config{ArchiveBucket: "bucket"}))
	assert.True(t, NeedsAWS(&appconfig.Config{EmailProvider: "ses"}))
}

func TestBuildNotifier(t *testing.T) {
	logger := logging.New("error")
	ctx := context.Background()

	n, err := BuildNotifier(ctx, &appconfig.Config{EmailProvider: "sendgrid", SendGridAPIKey: "key"}, nil, logger)
	require.NoError(t, err)
	assert.Nil(t, n, "no recipient configured")

	n, err = BuildNotifier(ctx, &appconfig.Config{EmailProvider: "none", NotifyEmail: "sales@example.com"}, nil, logger)
	require.NoError(t, err)
	assert.Nil(t, n)

	n, err = BuildNotifier(ctx, &appconfig.Config{EmailProvider: "sendgrid", NotifyEmail: "sales@example.com"}, nil, logger)
	require.NoError(t, err)
	assert.Nil(t, n, "missing api key disables email")

	n, err = BuildNotifier(ctx, &appconfig.Config{
		EmailProvider:    "sendgrid",
		SendGridAPIKey:   "key",
		NotifyEmail:      "sales@example.com",
		EmailFromAddress: "crm@example.com",
	}, nil, logger)
	require.NoError(t, err)
	assert.NotNil(t, n)

	n, err = BuildNotifier(ctx, &appconfig.Config{
		EmailProvider:    "ses",
		NotifyEmail:      "sales@example.com",
		EmailFromAddress: "crm@example.com",
	}, staticAWS, logger)
	require.NoError(t, err)
	assert.NotNil(t, n)

	_, err = BuildNotifier(ctx, &appconfig.Config{EmailProvider: "pigeon", NotifyEmail: "sales@example.com"}, nil, logger)
	assert.Error(t, err)
}

func TestBuildArchiver(t *testing.T) {
	logger := logging.New("error")
	ctx := context.Background()

	a, err := BuildArchiver(ctx, &appconfig.Config{}, staticAWS, logger)
	require.NoError(t, err)
	assert.Nil(t, a)

	a, err = BuildArchiver(ctx, &appconfig.Config{ArchiveBucket: "crm-archive"}, staticAWS, logger)
	require.NoError(t, err)
	assert.NotNil(t, a)

	_, err = BuildArchiver(ctx, &appconfig.Config{ArchiveBucket: "crm-archive"}, failingAWS, logger)
	assert.Error(t, err)
}

func TestBuildRedisClientAndGuard(t *testing.T) {
	logger := logging.New("error")
	ctx := context.Background()

	assert.Nil(t, BuildRedisClient(ctx, &appconfig.Config{}, logger, true))
	assert.Nil(t, BuildSubmissionGuard(nil, &appconfig.Config{SubmitMaxPerEmail: 3}, logger))

	mr := miniredis.RunT(t)
	cfg := &appconfig.Config{RedisAddr: mr.Addr(), SubmitMaxPerEmail: 1, SubmitWindow: time.Minute}
	client := BuildRedisClient(ctx, cfg, logger, true)
	require.NotNil(t, client)
	defer client.Close()

	guard := BuildSubmissionGuard(client, cfg, logger)
	require.NotNil(t, guard)
	assert.True(t, guard.AllowSubmission(ctx, "ada@example.com"))
	assert.False(t, guard.AllowSubmission(ctx, "ada@example.com"))
}

func TestBuildRedisClientUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	client := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: addr}, logging.New("error"), true)
	assert.Nil(t, client)
}
