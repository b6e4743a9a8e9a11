package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-customer/pkg/simplecustomer"
	"github.com/tendant/simple-customer/pkg/simplecustomer/cursor"
	"github.com/tendant/simple-customer/pkg/simplecustomer/objectkey"
	repobadger "github.com/tendant/simple-customer/pkg/simplecustomer/repo/badger"
	repobolt "github.com/tendant/simple-customer/pkg/simplecustomer/repo/bolt"
	repofirestore "github.com/tendant/simple-customer/pkg/simplecustomer/repo/firestore"
	"github.com/tendant/simple-customer/pkg/simplecustomer/repo/memory"
	repomongo "github.com/tendant/simple-customer/pkg/simplecustomer/repo/mongo"
	repopg "github.com/tendant/simple-customer/pkg/simplecustomer/repo/postgres"
	fsstorage "github.com/tendant/simple-customer/pkg/simplecustomer/storage/fs"
	gcsstorage "github.com/tendant/simple-customer/pkg/simplecustomer/storage/gcs"
	memorystorage "github.com/tendant/simple-customer/pkg/simplecustomer/storage/memory"
	s3storage "github.com/tendant/simple-customer/pkg/simplecustomer/storage/s3"
	"github.com/tendant/simple-customer/pkg/simplecustomer/urlstrategy"
)

// AssetsPath is where Runtime.Assets expects to be mounted
const AssetsPath = "/assets"

// Runtime is the wired service together with the resources it holds
type Runtime struct {
	Service simplecustomer.Service
	// Assets serves uploaded images when the storage backend keeps them
	// locally (memory, fs). It is nil otherwise and expects AssetsPath to be stripped.
	Assets http.Handler
	Logger *slog.Logger

	closers []func() error
}

// Close releases database and storage clients
func (r *Runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BuildService creates the service and its collaborators from the configuration
func (c *ServerConfig) BuildService(ctx context.Context) (*Runtime, error) {
	rt := &Runtime{Logger: c.NewLogger(nil)}

	store, err := c.buildStore(ctx, rt)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to build store: %w", err)
	}

	uploader, err := c.buildUploader(ctx, rt)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to build storage backend %s: %w", c.Storage.Type, err)
	}

	svc, err := simplecustomer.New(
		simplecustomer.WithStore(store),
		simplecustomer.WithUploader(uploader),
		simplecustomer.WithPageSize(c.PageSize),
		simplecustomer.WithLogger(rt.Logger),
	)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Service = svc
	return rt, nil
}

func (c *ServerConfig) codec(scope string) *cursor.Codec {
	var opts []cursor.Option
	if c.CursorSecret != "" {
		opts = append(opts, cursor.WithSecret([]byte(c.CursorSecret)))
	}
	if c.CursorMaxAge > 0 {
		opts = append(opts, cursor.WithMaxAge(c.CursorMaxAge))
	}
	return cursor.New(scope, opts...)
}

// buildStore creates the customer store based on the configuration
func (c *ServerConfig) buildStore(ctx context.Context, rt *Runtime) (simplecustomer.Store, error) {
	codec := c.codec(c.DatabaseType + "/customers")

	switch c.DatabaseType {
	case DatabaseMemory:
		return memory.New(memory.WithCodec(codec)), nil

	case DatabasePostgres:
		pool, err := c.postgresPool(ctx)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func() error { pool.Close(); return nil })
		repo := repopg.NewWithPool(pool, repopg.WithCodec(codec))
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return repo, nil

	case DatabaseBadger, DatabaseBolt:
		u, err := url.Parse(c.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		path := filePath(u)
		if c.DatabaseType == DatabaseBadger {
			repo, err := repobadger.Open(path, repobadger.WithCodec(codec))
			if err != nil {
				return nil, err
			}
			rt.closers = append(rt.closers, repo.Close)
			return repo, nil
		}
		opts := []repobolt.Option{repobolt.WithCodec(codec)}
		if bucket := u.Query().Get("bucket"); bucket != "" {
			opts = append(opts, repobolt.WithBucket(bucket))
		}
		repo, err := repobolt.Open(path, opts...)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, repo.Close)
		return repo, nil

	case DatabaseMongo:
		u, err := url.Parse(c.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		database := strings.Trim(u.Path, "/")
		collection := u.Query().Get("collection")
		repo, err := repomongo.Connect(ctx, c.DatabaseURL, database, collection, repomongo.WithCodec(codec))
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, repo.Close)
		return repo, nil

	case DatabaseFirestore:
		u, err := url.Parse(c.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		opts := []repofirestore.Option{repofirestore.WithCodec(codec)}
		if collection := u.Query().Get("collection"); collection != "" {
			opts = append(opts, repofirestore.WithCollection(collection))
		}
		repo, err := repofirestore.Connect(ctx, u.Host, opts...)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, repo.Close)
		return repo, nil

	default:
		return nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

func (c *ServerConfig) postgresPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(c.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	if schema := c.DBSchema; schema != "" {
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, "SET search_path TO "+pgx.Identifier{schema}.Sanitize())
			return err
		}
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return pool, nil
}

// LocalAssetsURL is the base URL of images this server serves itself
func (c *ServerConfig) LocalAssetsURL() string {
	return "http://localhost:" + c.Port + AssetsPath
}

// urlStrategy picks how public image URLs are built. PublicBaseURL wins;
// otherwise buckets use their own URLs and memory or fs storage is addressed
// through LocalAssetsURL.
func (c *ServerConfig) urlStrategy() (urlstrategy.URLStrategy, error) {
	cfg := c.Storage.Config
	sc := urlstrategy.Config{Type: urlstrategy.StrategyTypeCDN, BaseURL: c.PublicBaseURL}
	if c.PublicBaseURL == "" {
		switch c.Storage.Type {
		case StorageS3:
			sc = urlstrategy.Config{
				Type:      urlstrategy.StrategyTypeS3,
				Bucket:    getString(cfg, "bucket", ""),
				Region:    getString(cfg, "region", "us-east-1"),
				Endpoint:  getString(cfg, "endpoint", ""),
				PathStyle: getBool(cfg, "use_path_style", false),
			}
		case StorageGCS:
			sc = urlstrategy.Config{Type: urlstrategy.StrategyTypeGCS, Bucket: getString(cfg, "bucket", "")}
		default:
			sc.BaseURL = c.LocalAssetsURL()
		}
	}
	return urlstrategy.NewURLStrategy(sc)
}

// buildUploader creates the image storage backend based on the configuration
func (c *ServerConfig) buildUploader(ctx context.Context, rt *Runtime) (simplecustomer.Uploader, error) {
	keys, err := objectkey.NewGenerator(c.KeyStrategy)
	if err != nil {
		return nil, err
	}
	urls, err := c.urlStrategy()
	if err != nil {
		return nil, err
	}
	cfg := c.Storage.Config

	switch c.Storage.Type {
	case StorageMemory:
		backend := memorystorage.New(memorystorage.Config{KeyGenerator: keys, URLStrategy: urls})
		rt.Assets = backend
		return backend, nil

	case StorageFS:
		backend, err := fsstorage.New(fsstorage.Config{
			BaseDir:      getString(cfg, "base_dir", "./data/storage"),
			KeyGenerator: keys,
			URLStrategy:  urls,
		})
		if err != nil {
			return nil, err
		}
		rt.Assets = backend.Handler()
		return backend, nil

	case StorageS3:
		return s3storage.New(ctx, s3storage.Config{
			Region:                 getString(cfg, "region", "us-east-1"),
			Bucket:                 getString(cfg, "bucket", ""),
			AccessKeyID:            getString(cfg, "access_key_id", ""),
			SecretAccessKey:        getString(cfg, "secret_access_key", ""),
			Endpoint:               getString(cfg, "endpoint", ""),
			UsePathStyle:           getBool(cfg, "use_path_style", false),
			PublicRead:             getBool(cfg, "public_read", false),
			EnableSSE:              getBool(cfg, "enable_sse", false),
			SSEAlgorithm:           getString(cfg, "sse_algorithm", "AES256"),
			SSEKMSKeyID:            getString(cfg, "sse_kms_key_id", ""),
			CreateBucketIfNotExist: getBool(cfg, "create_bucket_if_not_exist", false),
			KeyGenerator:           keys,
			URLStrategy:            urls,
		})

	case StorageGCS:
		backend, err := gcsstorage.New(ctx, gcsstorage.Config{
			Bucket:       getString(cfg, "bucket", ""),
			PublicRead:   getBool(cfg, "public_read", false),
			Endpoint:     getString(cfg, "endpoint", ""),
			KeyGenerator: keys,
			URLStrategy:  urls,
		})
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, backend.Close)
		return backend, nil

	default:
		return nil, fmt.Errorf("unsupported storage backend type: %s", c.Storage.Type)
	}
}
