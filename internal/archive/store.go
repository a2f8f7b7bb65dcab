package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/wolfman30/lead-crm/internal/leads"
	"github.com/wolfman30/lead-crm/pkg/logging"
)

const recordVersion = "1.0"

// S3API is the subset of the S3 client used by Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// DeletedLeadRecord is the JSON snapshot written for every deleted lead.
type DeletedLeadRecord struct {
	Version    string      `json:"version"`
	LeadID     string      `json:"lead_id"`
	ArchivedAt time.Time   `json:"archived_at"`
	Lead       *leads.Lead `json:"lead"`
}

// ManifestEntry is one line of the monthly JSONL manifest.
type ManifestEntry struct {
	LeadID      string `json:"lead_id"`
	EmailSHA256 string `json:"email_sha256"`
	S3Key       string `json:"s3_key"`
	Source      string `json:"source"`
	Status      string `json:"status"`
	NoteCount   int    `json:"note_count"`
	ArchivedAt  string `json:"archived_at"`
}

// Store archives deleted leads to S3.
type Store struct {
	bucket   string
	s3Client S3API
	logger   *logging.Logger
	now      func() time.Time
}

var _ leads.Archiver = (*Store)(nil)

// NewStore creates an archive Store. If bucket is empty, all operations are no-ops.
func NewStore(s3Client S3API, bucket string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{
		bucket:   bucket,
		s3Client: s3Client,
		logger:   logger.Component("lead_archive"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Enabled returns true if archival is configured (bucket is set).
func (s *Store) Enabled() bool {
	return s != nil && s.bucket != "" && s.s3Client != nil
}

func recordKey(id string, at time.Time) string {
	return fmt.Sprintf("leads/v1/deleted/%d/%02d/%02d/%s.json", at.Year(), at.Month(), at.Day(), id)
}

func manifestKey(at time.Time) string {
	return fmt.Sprintf("leads/v1/manifests/%d-%02d.jsonl", at.Year(), at.Month())
}

// ArchiveLead writes a snapshot of lead to S3 and appends it to the manifest.
// A failed snapshot write is returned; a failed manifest append is only logged.
func (s *Store) ArchiveLead(ctx context.Context, lead *leads.Lead) error {
	if !s.Enabled() {
		return nil
	}
	if lead == nil {
		return errors.New("archive: lead required")
	}

	now := s.now()
	data, err := json.Marshal(DeletedLeadRecord{
		Version:    recordVersion,
		LeadID:     lead.ID,
		ArchivedAt: now,
		Lead:       lead,
	})
	if err != nil {
		return fmt.Errorf("archive: marshal record: %w", err)
	}

	key := recordKey(lead.ID, now)
	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("archive: s3 put %s: %w", key, err)
	}
	s.logger.Info("archived deleted lead", "lead_id", lead.ID, "s3_key", key)

	entry := ManifestEntry{
		LeadID:      lead.ID,
		EmailSHA256: HashEmail(lead.Email),
		S3Key:       key,
		Source:      lead.Source,
		Status:      string(lead.Status),
		NoteCount:   len(lead.Notes),
		ArchivedAt:  now.Format(time.RFC3339),
	}
	if err := s.AppendManifest(ctx, entry); err != nil {
		s.logger.Warn("failed to append manifest", "error", err, "lead_id", lead.ID)
	}
	return nil
}

// AppendManifest appends a JSONL line to the monthly manifest.
// S3 has no append, so this is a read-modify-write.
func (s *Store) AppendManifest(ctx context.Context, entry ManifestEntry) error {
	if !s.Enabled() {
		return nil
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("archive: marshal manifest entry: %w", err)
	}

	key := manifestKey(s.now())
	existing, err := s.read(ctx, key)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if len(existing) > 0 {
		buf.Write(existing)
		if existing[len(existing)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}
	buf.Write(line)
	buf.WriteByte('\n')

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("archive: s3 put manifest: %w", err)
	}
	return nil
}

// read returns the object body, or nil when the key does not exist.
func (s *Store) read(ctx context.Context, key string) ([]byte, error) {
	out, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, nil
		}
		return nil, fmt.Errorf("archive: s3 get %s: %w", key, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("archive: read %s: %w", key, err)
	}
	return data, nil
}
