package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	config "github.com/crosspost-app/crosspost/configs"
)

// ErrMediaUnavailable means the media reference could not be confirmed
// reachable. Transient network conditions are the expected cause, so the
// attempt is retried up to the job's budget.
var ErrMediaUnavailable = errors.New("media unavailable")

// ErrUnsupportedReference means the reference is neither a remote URL nor
// a local path. Retries cannot fix this; it is flagged for monitoring.
var ErrUnsupportedReference = errors.New("unsupported media reference")

const probeTimeout = 5 * time.Second

type HeadObjectAPI interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

type Checker interface {
	// Prepare confirms a media reference is retrievable and returns the
	// resolved reference. Runs before the rate-limited platform call so
	// doomed jobs never consume rate budget.
	Prepare(ctx context.Context, mediaURL, platform string, postID int64) (string, error)
}

type checker struct {
	s3     HeadObjectAPI
	bucket string
	// hosts we probe with HeadObject; all other remote URLs are trusted.
	storageHosts []string
}

func NewChecker(client HeadObjectAPI, cfg config.R2) Checker {
	hosts := []string{fmt.Sprintf("%s.r2.cloudflarestorage.com", cfg.AccountID)}
	if cfg.PublicURL != "" {
		if u, err := url.Parse(cfg.PublicURL); err == nil && u.Host != "" {
			hosts = append(hosts, u.Host)
		}
	}
	return &checker{s3: client, bucket: cfg.BucketName, storageHosts: hosts}
}

func (c *checker) Prepare(ctx context.Context, mediaURL, platform string, postID int64) (string, error) {
	ref := strings.TrimSpace(mediaURL)
	if ref == "" {
		return "", fmt.Errorf("%w: empty media reference", ErrUnsupportedReference)
	}

	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedReference, ref)
	}

	switch {
	case u.Scheme == "http" || u.Scheme == "https":
		if c.isStorageHost(u.Host) {
			if err := c.probeStorage(ctx, u, postID); err != nil {
				return "", err
			}
			return ref, nil
		}
		// Other remote URLs are assumed reachable. The storage provider
		// is the only origin we can verify cheaply.
		return ref, nil
	case u.Scheme == "":
		if _, err := os.Stat(ref); err != nil {
			slog.Info("local media path not found", "path", ref, "post_id", postID)
			return "", fmt.Errorf("%w: local path %q", ErrMediaUnavailable, ref)
		}
		return ref, nil
	default:
		return "", fmt.Errorf("%w: scheme %q", ErrUnsupportedReference, u.Scheme)
	}
}

func (c *checker) isStorageHost(host string) bool {
	for _, h := range c.storageHosts {
		if strings.EqualFold(host, h) {
			return true
		}
	}
	return false
}

func (c *checker) probeStorage(ctx context.Context, u *url.URL, postID int64) error {
	key := strings.TrimPrefix(u.Path, "/")
	key = strings.TrimPrefix(key, c.bucket+"/")
	if key == "" {
		return fmt.Errorf("%w: no object key in %q", ErrUnsupportedReference, u.String())
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	_, err := c.s3.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		// Anything but a definitive success, timeouts included, counts
		// as unavailable.
		slog.Info("media probe failed", "key", key, "post_id", postID, "error", err.Error())
		return fmt.Errorf("%w: object %q: %v", ErrMediaUnavailable, key, err)
	}

	return nil
}
