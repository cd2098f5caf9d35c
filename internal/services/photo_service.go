package services

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"

	"github.com/giftlist/backend/internal/logging"
)

var (
	// ErrImageRejected is returned when SafeSearch flags an image as unsafe.
	ErrImageRejected = errors.New("image rejected: violates community guidelines")
	ErrInvalidImage  = errors.New("invalid image file")
)

const pendingPrefix = "pending/"

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// PhotoBucket is the object storage the avatars live in.
type PhotoBucket interface {
	Name() string
	Write(ctx context.Context, object, contentType string, r io.Reader) error
	// Promote copies from to to, tags it with a download token and removes from.
	Promote(ctx context.Context, from, to, token string) error
	Delete(ctx context.Context, object string) error
}

// PhotoService uploads profile photos under pending/, runs SafeSearch on
// them and promotes safe ones to their final path.
type PhotoService struct {
	bucket   PhotoBucket
	detector SafeSearchDetector
}

func NewPhotoService(bucket PhotoBucket, detector SafeSearchDetector) *PhotoService {
	return &PhotoService{bucket: bucket, detector: detector}
}

// UploadAvatar stores r for uid and returns the approved download URL.
func (p *PhotoService) UploadAvatar(ctx context.Context, uid string, r io.Reader) (string, error) {
	br := bufio.NewReaderSize(r, 512)
	head, err := br.Peek(512)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if len(head) == 0 {
		return "", ErrInvalidImage
	}
	contentType := http.DetectContentType(head)
	ext, ok := imageExtensions[contentType]
	if !ok {
		return "", ErrInvalidImage
	}

	pendingPath := fmt.Sprintf("%savatars/%s/%s%s", pendingPrefix, uid, uuid.New().String(), ext)
	if err := p.bucket.Write(ctx, pendingPath, contentType, br); err != nil {
		return "", fmt.Errorf("upload photo: %w", err)
	}
	return p.ModerateAndPromote(ctx, pendingPath, uid)
}

// ModerateAndPromote runs SafeSearch on a pending/ object. Unsafe objects are
// deleted and ErrImageRejected is returned.
func (p *PhotoService) ModerateAndPromote(ctx context.Context, pendingPath, uid string) (string, error) {
	if !strings.HasPrefix(pendingPath, pendingPrefix) {
		return pendingPath, nil
	}

	gcsURI := fmt.Sprintf("gs://%s/%s", p.bucket.Name(), pendingPath)
	ss, err := p.detector.DetectSafeSearch(ctx, gcsURI)
	if err != nil {
		slog.Error("[ModeratePhoto] SafeSearch error", "path", pendingPath, logging.Err(err))
		if derr := p.bucket.Delete(ctx, pendingPath); derr != nil {
			slog.Error("[ModeratePhoto] delete failed", "path", pendingPath, logging.Err(derr))
		}
		return "", fmt.Errorf("safesearch: %w", err)
	}

	slog.Info("[ModeratePhoto] SafeSearch result",
		"path", pendingPath, "adult", ss.Adult, "violence", ss.Violence, "racy", ss.Racy)

	if flagged := ss.Flagged(); len(flagged) > 0 {
		if err := p.bucket.Delete(ctx, pendingPath); err != nil {
			slog.Error("[ModeratePhoto] delete failed", "path", pendingPath, logging.Err(err))
		}
		slog.Warn("[ModeratePhoto] photo rejected", "user_id", uid, "flagged", flagged)
		return "", ErrImageRejected
	}

	finalName := strings.TrimPrefix(pendingPath, pendingPrefix)
	token := uuid.New().String()
	if err := p.bucket.Promote(ctx, pendingPath, finalName, token); err != nil {
		return "", fmt.Errorf("promote photo: %w", err)
	}
	return firebaseDownloadURL(p.bucket.Name(), finalName, token), nil
}

func firebaseDownloadURL(bucket, objectName, token string) string {
	return fmt.Sprintf(
		"https://firebasestorage.googleapis.com/v0/b/%s/o/%s?alt=media&token=%s",
		bucket,
		url.PathEscape(objectName),
		url.QueryEscape(token),
	)
}

// GCSBucket is a PhotoBucket on Cloud Storage for Firebase.
type GCSBucket struct {
	gcs    *storage.Client
	bucket string
}

var _ PhotoBucket = (*GCSBucket)(nil)

func NewGCSBucket(client *storage.Client, bucket string) *GCSBucket {
	return &GCSBucket{gcs: client, bucket: bucket}
}

func (b *GCSBucket) Name() string {
	return b.bucket
}

func (b *GCSBucket) Write(ctx context.Context, object, contentType string, r io.Reader) error {
	w := b.gcs.Bucket(b.bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = map[string]string{"moderation": "pending"}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func (b *GCSBucket) Promote(ctx context.Context, from, to, token string) error {
	bkt := b.gcs.Bucket(b.bucket)
	src := bkt.Object(from)
	dst := bkt.Object(to)

	// Freshly written objects can take a moment to become readable.
	var attrs *storage.ObjectAttrs
	var err error
	maxRetries := 3
	for attempt := 0; attempt < maxRetries; attempt++ {
		attrs, err = src.Attrs(ctx)
		if err == nil {
			break
		}
		if errors.Is(err, storage.ErrObjectNotExist) && attempt < maxRetries-1 {
			backoff := time.Duration(attempt+1) * 500 * time.Millisecond
			slog.Debug("[PromotePhoto] object not found yet", "path", from, "backoff", backoff)
			time.Sleep(backoff)
			continue
		}
		return fmt.Errorf("source attrs: %w", err)
	}

	md := map[string]string{}
	for k, v := range attrs.Metadata {
		md[k] = v
	}
	md["moderation"] = "approved"
	md["firebaseStorageDownloadTokens"] = token

	if _, err := dst.CopierFrom(src).Run(ctx); err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	if _, err := dst.Update(ctx, storage.ObjectAttrsToUpdate{Metadata: md}); err != nil {
		return fmt.Errorf("update metadata: %w", err)
	}
	return src.Delete(ctx)
}

func (b *GCSBucket) Delete(ctx context.Context, object string) error {
	return b.gcs.Bucket(b.bucket).Object(object).Delete(ctx)
}
