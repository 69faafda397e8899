// Package backup snapshots the sqlite database, encrypts the copy, and
// uploads it to S3-compatible storage.
package backup

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

// Config holds backup configuration.
type Config struct {
	S3     S3Config
	DBPath string
	Prefix string // object key prefix, default "backups"
}

// Service runs one-shot encrypted backups and restores.
type Service struct {
	cfg    Config
	db     *sql.DB
	client s3Client
}

// New creates a backup service. S3 credentials must be complete.
func New(cfg Config, db *sql.DB) (*Service, error) {
	if cfg.S3.Bucket == "" || cfg.S3.AccessKey == "" || cfg.S3.SecretKey == "" {
		return nil, fmt.Errorf("backup not configured: S3 credentials missing")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "backups"
	}
	return &Service{cfg: cfg, db: db, client: newS3Client(cfg.S3)}, nil
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Run snapshots the database, encrypts the copy with a fresh salt, and
// uploads it. Returns the object key.
func (s *Service) Run(ctx context.Context, passphrase string) (string, error) {
	timestamp := time.Now().UTC().Format("2006-01-02T150405Z")
	key := fmt.Sprintf("%s/morsel-%s.db.enc", s.cfg.Prefix, timestamp)

	tmpDir := os.TempDir()
	dbCopy := filepath.Join(tmpDir, fmt.Sprintf("morsel-backup-%s.db", timestamp))
	encFile := dbCopy + ".enc"
	defer os.Remove(dbCopy)
	defer os.Remove(encFile)

	// VACUUM INTO writes a consistent, compacted copy without blocking
	// writers or needing a WAL checkpoint on the live file.
	if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, dbCopy); err != nil {
		return "", fmt.Errorf("snapshot database: %w", err)
	}

	salt, err := GenerateSalt()
	if err != nil {
		return "", err
	}
	if err := EncryptFile(dbCopy, encFile, passphrase, salt); err != nil {
		return "", fmt.Errorf("encrypt: %w", err)
	}

	encData, err := os.Open(encFile)
	if err != nil {
		return "", fmt.Errorf("open encrypted file: %w", err)
	}
	defer encData.Close()

	stat, err := encData.Stat()
	if err != nil {
		return "", fmt.Errorf("stat encrypted file: %w", err)
	}

	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.S3.Bucket),
		Key:           aws.String(key),
		Body:          encData,
		ContentLength: aws.Int64(stat.Size()),
	}); err != nil {
		return "", fmt.Errorf("upload to s3: %w", err)
	}

	slog.Info("backup uploaded", "key", key, "bytes", stat.Size())
	return key, nil
}

// Restore downloads the object, decrypts it, verifies sqlite integrity, and
// writes the database to dstPath. Any stale WAL or SHM sidecar files at
// dstPath are removed. The caller is responsible for reopening connections.
func (s *Service) Restore(ctx context.Context, key, passphrase, dstPath string) error {
	tmpDir := os.TempDir()
	base := filepath.Base(key)
	encFile := filepath.Join(tmpDir, "morsel-restore-"+base)
	decFile := filepath.Join(tmpDir, "morsel-restore-"+base+".db")
	defer os.Remove(encFile)
	defer os.Remove(decFile)

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.S3.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("download from s3: %w", err)
	}
	defer result.Body.Close()

	out, err := os.Create(encFile)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(out, result.Body); err != nil {
		out.Close()
		return fmt.Errorf("write downloaded file: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := DecryptFile(encFile, decFile, passphrase); err != nil {
		return fmt.Errorf("decrypt backup: %w", err)
	}

	tmpDB, err := sql.Open("sqlite", decFile)
	if err != nil {
		return fmt.Errorf("open restored db: %w", err)
	}
	var integrity string
	if err := tmpDB.QueryRow(`PRAGMA integrity_check`).Scan(&integrity); err != nil {
		tmpDB.Close()
		return fmt.Errorf("integrity check: %w", err)
	}
	tmpDB.Close()
	if integrity != "ok" {
		return fmt.Errorf("integrity check failed: %s", integrity)
	}

	if err := copyFile(decFile, dstPath); err != nil {
		return fmt.Errorf("replace database: %w", err)
	}
	os.Remove(dstPath + "-wal")
	os.Remove(dstPath + "-shm")

	slog.Info("restore complete", "key", key, "path", dstPath)
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
