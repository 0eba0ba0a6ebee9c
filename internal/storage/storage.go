// Package storage keeps intake file attachments outside the answer set.
package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"medinexa/internal/domain"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

var (
	ErrFileTooLarge       = errors.New("file too large")
	ErrEmptyFile          = errors.New("file is empty")
	ErrAttachmentNotFound = errors.New("attachment not found")
)

// Upload is a file received from a patient
type Upload struct {
	OwnerID     string
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Store persists attachments and returns their reference
type Store interface {
	Put(ctx context.Context, upload Upload) (*domain.Attachment, error)
	// Stat returns the stored attachment for key, or ErrAttachmentNotFound
	Stat(ctx context.Context, key string) (*domain.Attachment, error)
}

// OwnedBy reports whether key was issued for an upload by ownerID
func OwnedBy(key, ownerID string) bool {
	return ownerID != "" && strings.HasPrefix(key, "attachments/"+ownerID+"/")
}

// readLimited buffers an upload, rejecting anything above maxBytes
func readLimited(upload Upload, maxBytes int64) ([]byte, error) {
	if upload.Size > maxBytes {
		return nil, ErrFileTooLarge
	}
	data, err := io.ReadAll(io.LimitReader(upload.Body, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, ErrFileTooLarge
	}
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}
	return data, nil
}

func newAttachment(upload Upload, data []byte) *domain.Attachment {
	id := uuid.New().String()
	sum := sha256.Sum256(data)
	contentType := upload.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &domain.Attachment{
		ID:          id,
		FileName:    path.Base(upload.FileName),
		ContentType: contentType,
		Size:        int64(len(data)),
		Key:         objectKey(upload.OwnerID, id, upload.FileName),
		Hash:        hex.EncodeToString(sum[:]),
		UploadedAt:  time.Now().UTC(),
	}
}

func objectKey(ownerID, id, fileName string) string {
	ext := strings.ToLower(path.Ext(fileName))
	return fmt.Sprintf("attachments/%s/%s%s", ownerID, id, ext)
}

// S3Config selects the bucket and endpoint used for attachments
type S3Config struct {
	Bucket       string
	Region       string
	Endpoint     string
	UsePathStyle bool
}

// object metadata keys written on upload
const (
	metaID       = "attachment-id"
	metaFileName = "file-name"
	metaSHA256   = "sha256"
)

type s3Store struct {
	client   *s3.Client
	bucket   string
	maxBytes int64
}

// NewS3Client builds an S3 client from the default AWS credential chain
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// NewS3Store stores attachments as private objects in bucket
func NewS3Store(client *s3.Client, bucket string, maxBytes int64) Store {
	return &s3Store{client: client, bucket: bucket, maxBytes: maxBytes}
}

func (s *s3Store) Put(ctx context.Context, upload Upload) (*domain.Attachment, error) {
	data, err := readLimited(upload, s.maxBytes)
	if err != nil {
		return nil, err
	}

	attachment := newAttachment(upload, data)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(attachment.Key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(attachment.ContentType),
		ACL:         types.ObjectCannedACLPrivate,
		Metadata: map[string]string{
			metaID:       attachment.ID,
			metaFileName: attachment.FileName,
			metaSHA256:   attachment.Hash,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload attachment: %w", err)
	}
	return attachment, nil
}

func (s *s3Store) Stat(ctx context.Context, key string) (*domain.Attachment, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return nil, ErrAttachmentNotFound
		}
		return nil, fmt.Errorf("failed to stat attachment: %w", err)
	}

	attachment := &domain.Attachment{
		ID:          out.Metadata[metaID],
		FileName:    out.Metadata[metaFileName],
		ContentType: aws.ToString(out.ContentType),
		Size:        aws.ToInt64(out.ContentLength),
		Key:         key,
		Hash:        out.Metadata[metaSHA256],
	}
	if out.LastModified != nil {
		attachment.UploadedAt = out.LastModified.UTC()
	}
	return attachment, nil
}

// MemoryStore keeps attachments in process memory
type MemoryStore struct {
	mu       sync.RWMutex
	objects  map[string][]byte
	meta     map[string]domain.Attachment
	maxBytes int64
}

func NewMemoryStore(maxBytes int64) *MemoryStore {
	return &MemoryStore{
		objects:  make(map[string][]byte),
		meta:     make(map[string]domain.Attachment),
		maxBytes: maxBytes,
	}
}

func (s *MemoryStore) Put(_ context.Context, upload Upload) (*domain.Attachment, error) {
	data, err := readLimited(upload, s.maxBytes)
	if err != nil {
		return nil, err
	}

	attachment := newAttachment(upload, data)
	s.mu.Lock()
	s.objects[attachment.Key] = data
	s.meta[attachment.Key] = *attachment
	s.mu.Unlock()
	return attachment, nil
}

func (s *MemoryStore) Stat(_ context.Context, key string) (*domain.Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attachment, ok := s.meta[key]
	if !ok {
		return nil, ErrAttachmentNotFound
	}
	return &attachment, nil
}

// Get returns a stored object by key
func (s *MemoryStore) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[key]
	return data, ok
}
