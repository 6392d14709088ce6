package storage

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/config"
)

// ErrNotFound is returned when a key has never been written.
var ErrNotFound = errors.New("storage: object not found")

// Info describes a stored object.
type Info struct {
	Size    int64
	ModTime time.Time
}

// Blob is the persistence port for whole JSON documents (the consolidated
// store and the URL config). Every write replaces the previous content.
type Blob interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Stat(ctx context.Context, key string) (Info, error)
}

// New creates the backend selected by cfg.Type.
func New(ctx context.Context, cfg config.StorageConfig) (Blob, error) {
	switch cfg.Type {
	case "", "local":
		return NewLocal(cfg.LocalPath), nil
	case "memory":
		return NewMemory(), nil
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, errors.New("storage type s3 requires s3_bucket (S3_BUCKET)")
		}
		awsCfg, err := loadAWSConfig(ctx, cfg.AWSRegion, cfg.AWSProfile)
		if err != nil {
			return nil, err
		}
		return NewS3(newS3Client(awsCfg), cfg.S3Bucket, cfg.S3Prefix), nil
	case "dynamodb":
		if cfg.DynamoDBTable == "" {
			return nil, errors.New("storage type dynamodb requires dynamodb_table (DYNAMODB_TABLE)")
		}
		awsCfg, err := loadAWSConfig(ctx, cfg.AWSRegion, cfg.AWSProfile)
		if err != nil {
			return nil, err
		}
		return NewDynamo(newDynamoClient(awsCfg), cfg.DynamoDBTable), nil
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, errors.New("storage type postgres requires database_url (DATABASE_URL)")
		}
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("opening postgres: %w", err)
		}
		pg := NewPostgres(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
		return pg, nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

// GetJSON reads key and decodes it into target.
func GetJSON(ctx context.Context, b Blob, key string, target any) error {
	data, err := b.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("decoding %s: %w", key, err)
	}
	return nil
}

// PutJSON encodes v as indented JSON and writes it under key.
func PutJSON(ctx context.Context, b Blob, key string, v any) error {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	return b.Put(ctx, key, buf.Bytes())
}

// objectKey turns a filesystem-style key ("./data/x.json") into a remote key ("data/x.json").
func objectKey(prefix, key string) string {
	k := strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(key, "\\", "/")), "/")
	if prefix == "" {
		return k
	}
	return strings.TrimSuffix(prefix, "/") + "/" + k
}
