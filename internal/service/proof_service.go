package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-rewards-api/internal/dto"
	"github.com/noah-isme/campus-rewards-api/internal/models"
	appErrors "github.com/noah-isme/campus-rewards-api/pkg/errors"
	"github.com/noah-isme/campus-rewards-api/pkg/storage"
)

type proofAssignmentReader interface {
	Find(ctx context.Context, studentID, taskID string) (*models.Assignment, error)
}

type proofURLSigner interface {
	Generate(subject, key string) (string, time.Time, error)
	Parse(token string) (subject, key string, expiresAt time.Time, err error)
}

// ProofUpload carries an uploaded proof file.
type ProofUpload struct {
	Filename string
	Size     int64
	MimeType string
	Content  io.ReadSeeker
}

// ProofDownload is a proof blob ready to stream.
type ProofDownload struct {
	Filename  string
	MimeType  string
	Content   []byte
	ExpiresAt time.Time
}

// ProofServiceConfig holds upload limits and the public route prefix.
type ProofServiceConfig struct {
	MaxFileSize  int64
	AllowedMIMEs []string
	APIPrefix    string
}

// ProofService stores proof files and hands out signed download links to reviewing faculty.
type ProofService struct {
	storage     storage.Storage
	signer      proofURLSigner
	assignments proofAssignmentReader
	logger      *zap.Logger
	cfg         ProofServiceConfig
	mimeSet     map[string]struct{}
}

// NewProofService constructs the service with defaults.
func NewProofService(store storage.Storage, signer proofURLSigner, assignments proofAssignmentReader, logger *zap.Logger, cfg ProofServiceConfig) *ProofService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 10 * 1024 * 1024
	}
	if len(cfg.AllowedMIMEs) == 0 {
		cfg.AllowedMIMEs = []string{"image/jpeg", "image/png", "application/pdf"}
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	mimeSet := make(map[string]struct{}, len(cfg.AllowedMIMEs))
	for _, mt := range cfg.AllowedMIMEs {
		mimeSet[strings.ToLower(mt)] = struct{}{}
	}
	return &ProofService{
		storage:     store,
		signer:      signer,
		assignments: assignments,
		logger:      logger,
		cfg:         cfg,
		mimeSet:     mimeSet,
	}
}

// Store validates and writes upload, returning its storage reference.
func (s *ProofService) Store(ctx context.Context, studentID, taskID string, upload *ProofUpload) (string, error) {
	if upload == nil || upload.Content == nil || upload.Size == 0 {
		return "", appErrors.Clone(appErrors.ErrProofRequired, "")
	}
	if upload.Size > s.cfg.MaxFileSize {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds %d bytes limit", s.cfg.MaxFileSize))
	}
	mimeType, err := detectMime(upload)
	if err != nil {
		return "", err
	}
	if _, allowed := s.mimeSet[strings.ToLower(mimeType)]; !allowed {
		return "", appErrors.Clone(appErrors.ErrValidation, "mime type not allowed")
	}

	data, err := io.ReadAll(io.LimitReader(upload.Content, s.cfg.MaxFileSize+1))
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload")
	}
	if int64(len(data)) > s.cfg.MaxFileSize {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds %d bytes limit", s.cfg.MaxFileSize))
	}
	if len(data) == 0 {
		return "", appErrors.Clone(appErrors.ErrProofRequired, "")
	}

	key := proofKey(studentID, taskID, mimeType)
	if err := s.storage.Write(ctx, key, data); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store proof")
	}
	return key, nil
}

// Remove deletes a stored proof, logging failures.
func (s *ProofService) Remove(ctx context.Context, ref string) {
	if ref == "" {
		return
	}
	if err := s.storage.Delete(context.WithoutCancel(ctx), ref); err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.logger.Warn("failed to remove orphaned proof", zap.String("proof_ref", ref), zap.Error(err))
	}
}

// SignedURL issues a download link for the proof of a submission the faculty member reviews.
func (s *ProofService) SignedURL(ctx context.Context, actor *models.JWTClaims, query dto.ProofURLQuery) (*models.ProofLink, error) {
	if err := requireRole(actor, models.RoleFaculty); err != nil {
		return nil, err
	}
	assignment, err := s.assignments.Find(ctx, query.StudentID, query.TaskID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrAssignmentNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	if assignment.FacultyID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrAssignmentNotFound, "")
	}
	if assignment.ProofRef == nil || *assignment.ProofRef == "" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment has no proof")
	}

	token, expiresAt, err := s.signer.Generate(actor.UserID, *assignment.ProofRef)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate download token")
	}
	base := strings.TrimRight(s.cfg.APIPrefix, "/")
	return &models.ProofLink{
		URL:       fmt.Sprintf("%s/proofs/download?token=%s", base, url.QueryEscape(token)),
		ExpiresAt: expiresAt,
	}, nil
}

// Download resolves a signed token issued to actor into the proof contents.
func (s *ProofService) Download(ctx context.Context, actor *models.JWTClaims, token string) (*ProofDownload, error) {
	if err := requireRole(actor, models.RoleFaculty); err != nil {
		return nil, err
	}
	subject, key, expiresAt, err := s.signer.Parse(token)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired token")
	}
	if subject != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	data, err := s.storage.Read(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "proof not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read proof")
	}
	return &ProofDownload{
		Filename:  path.Base(key),
		MimeType:  http.DetectContentType(data),
		Content:   data,
		ExpiresAt: expiresAt,
	}, nil
}

func detectMime(upload *ProofUpload) (string, error) {
	if upload.MimeType != "" && upload.MimeType != "application/octet-stream" {
		return upload.MimeType, nil
	}
	header := make([]byte, 512)
	n, err := upload.Content.Read(header)
	if err != nil && err != io.EOF {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect file")
	}
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset upload stream")
	}
	if n == 0 {
		return "", appErrors.Clone(appErrors.ErrProofRequired, "")
	}
	return http.DetectContentType(header[:n]), nil
}

func proofKey(studentID, taskID, mimeType string) string {
	return fmt.Sprintf("%s/%s/%s%s", pathSegment(taskID), pathSegment(studentID), ulid.Make().String(), mimeExtension(mimeType))
}

func pathSegment(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(raw) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func mimeExtension(mime string) string {
	switch strings.ToLower(mime) {
	case "application/pdf":
		return ".pdf"
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	default:
		return ".bin"
	}
}
