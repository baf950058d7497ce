package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awsS3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/mitchellh/mapstructure"

	"github.com/ybecker/catalogd/internal/logger"
	"github.com/ybecker/catalogd/pkg/store"
	"github.com/ybecker/catalogd/pkg/store/badger"
	"github.com/ybecker/catalogd/pkg/store/memory"
	"github.com/ybecker/catalogd/pkg/store/s3"
	"github.com/ybecker/catalogd/pkg/store/sqlite"
)

// Stores bundles the catalog and account backends built from configuration.
// When both sections select the same badger or sqlite path, a single backend
// instance serves both; Close handles that without double-closing.
type Stores struct {
	Catalog  store.CatalogStore
	Accounts store.AccountStore
}

// Close closes both backends. Safe when they share one instance.
func (s *Stores) Close() error {
	var firstErr error
	if s.Catalog != nil {
		if err := s.Catalog.Close(); err != nil {
			firstErr = err
		}
	}
	if s.Accounts != nil && any(s.Accounts) != any(s.Catalog) {
		if err := s.Accounts.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// badgerOptions configures the BadgerDB backend.
type badgerOptions struct {
	Path     string `mapstructure:"path"`
	InMemory bool   `mapstructure:"in_memory"`
}

// sqliteOptions configures the SQLite backend.
type sqliteOptions struct {
	Path string `mapstructure:"path"`
}

// s3Options configures the S3 catalog backend.
type s3Options struct {
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	KeyPrefix       string `mapstructure:"key_prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	MaxRetries      int    `mapstructure:"max_retries"`
}

// CreateStores builds the catalog and account backends from configuration.
//
// The caller owns the result and must Close it. Store health is not probed
// here; the server runs HealthCheck on both backends at startup.
func CreateStores(ctx context.Context, cfg *Config) (*Stores, error) {
	stores := &Stores{}

	switch cfg.Catalog.Type {
	case "memory":
		stores.Catalog = memory.NewCatalogStore()

	case "badger":
		db, err := createBadgerStore(cfg.Catalog.Badger)
		if err != nil {
			return nil, fmt.Errorf("catalog: %w", err)
		}
		stores.Catalog = db

		// One badger directory cannot be opened twice, so an accounts
		// section pointing at the same path shares the instance.
		if shared, err := sharesBadger(cfg, db); err != nil {
			_ = db.Close()
			return nil, err
		} else if shared {
			stores.Accounts = db
		}

	case "sqlite":
		db, err := createSQLiteStore(cfg.Catalog.SQLite)
		if err != nil {
			return nil, fmt.Errorf("catalog: %w", err)
		}
		stores.Catalog = db

		if shared, err := sharesSQLite(cfg, db); err != nil {
			_ = db.Close()
			return nil, err
		} else if shared {
			stores.Accounts = db
		}

	case "s3":
		catalogStore, err := createS3CatalogStore(ctx, cfg.Catalog.S3)
		if err != nil {
			return nil, fmt.Errorf("catalog: %w", err)
		}
		stores.Catalog = catalogStore

	default:
		return nil, fmt.Errorf("unknown catalog store type: %q", cfg.Catalog.Type)
	}

	if stores.Accounts == nil {
		accounts, err := createAccountStore(cfg.Accounts)
		if err != nil {
			_ = stores.Catalog.Close()
			return nil, fmt.Errorf("accounts: %w", err)
		}
		stores.Accounts = accounts
	}

	return stores, nil
}

// sharesBadger reports whether the accounts section selects the same badger
// database the catalog already opened.
func sharesBadger(cfg *Config, db *badger.Store) (bool, error) {
	if cfg.Accounts.Type != "badger" {
		return false, nil
	}
	var catalogOpts, accountOpts badgerOptions
	if err := mapstructure.Decode(cfg.Catalog.Badger, &catalogOpts); err != nil {
		return false, fmt.Errorf("invalid badger catalog config: %w", err)
	}
	if err := mapstructure.Decode(cfg.Accounts.Badger, &accountOpts); err != nil {
		return false, fmt.Errorf("invalid badger accounts config: %w", err)
	}
	if catalogOpts == accountOpts {
		logger.Debug("Catalog and accounts share one badger database")
		return true, nil
	}
	return false, nil
}

func sharesSQLite(cfg *Config, db *sqlite.Store) (bool, error) {
	if cfg.Accounts.Type != "sqlite" {
		return false, nil
	}
	var catalogOpts, accountOpts sqliteOptions
	if err := mapstructure.Decode(cfg.Catalog.SQLite, &catalogOpts); err != nil {
		return false, fmt.Errorf("invalid sqlite catalog config: %w", err)
	}
	if err := mapstructure.Decode(cfg.Accounts.SQLite, &accountOpts); err != nil {
		return false, fmt.Errorf("invalid sqlite accounts config: %w", err)
	}
	if catalogOpts == accountOpts {
		logger.Debug("Catalog and accounts share one sqlite database")
		return true, nil
	}
	return false, nil
}

func createAccountStore(cfg AccountStoreConfig) (store.AccountStore, error) {
	switch cfg.Type {
	case "memory":
		return memory.NewAccountStore(), nil
	case "badger":
		return createBadgerStore(cfg.Badger)
	case "sqlite":
		return createSQLiteStore(cfg.SQLite)
	default:
		return nil, fmt.Errorf("unknown account store type: %q", cfg.Type)
	}
}

func createBadgerStore(options map[string]any) (*badger.Store, error) {
	var opts badgerOptions
	if err := mapstructure.Decode(options, &opts); err != nil {
		return nil, fmt.Errorf("invalid badger config: %w", err)
	}

	if opts.InMemory {
		return badger.NewInMemory()
	}
	if opts.Path == "" {
		return nil, fmt.Errorf("badger store: path is required")
	}
	return badger.New(opts.Path)
}

func createSQLiteStore(options map[string]any) (*sqlite.Store, error) {
	var opts sqliteOptions
	if err := mapstructure.Decode(options, &opts); err != nil {
		return nil, fmt.Errorf("invalid sqlite config: %w", err)
	}

	if opts.Path == "" {
		return nil, fmt.Errorf("sqlite store: path is required")
	}
	return sqlite.New(opts.Path)
}

// createS3CatalogStore builds the AWS client and the catalog store on top of
// it. A custom endpoint (MinIO, Localstack) switches the client to
// path-style addressing.
func createS3CatalogStore(ctx context.Context, options map[string]any) (store.CatalogStore, error) {
	var opts s3Options
	if err := mapstructure.Decode(options, &opts); err != nil {
		return nil, fmt.Errorf("invalid s3 config: %w", err)
	}

	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 store: bucket is required")
	}
	if opts.Region == "" {
		return nil, fmt.Errorf("s3 store: region is required")
	}

	var configOptions []func(*awsConfig.LoadOptions) error
	configOptions = append(configOptions, awsConfig.WithRegion(opts.Region))

	if opts.Endpoint != "" {
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		customResolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				//nolint:staticcheck
				return aws.Endpoint{
					URL:               opts.Endpoint,
					HostnameImmutable: true,
					Source:            aws.EndpointSourceCustom,
				}, nil
			},
		)
		//nolint:staticcheck
		configOptions = append(configOptions, awsConfig.WithEndpointResolverWithOptions(customResolver))
	}

	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(
			opts.AccessKeyID,
			opts.SecretAccessKey,
			"",
		)
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	// The AWS default of 3 attempts gives up too easily on 503s.
	maxRetries := opts.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := awsS3.NewFromConfig(awsCfg, func(o *awsS3.Options) {
		if opts.Endpoint != "" {
			o.UsePathStyle = true
		}
	})

	catalogStore, err := s3.NewCatalogStore(ctx, s3.Config{
		Client:    client,
		Bucket:    opts.Bucket,
		KeyPrefix: opts.KeyPrefix,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("S3 catalog store initialized: bucket=%s, region=%s, prefix=%s",
		opts.Bucket, opts.Region, opts.KeyPrefix)
	return catalogStore, nil
}
