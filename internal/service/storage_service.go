package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	gonanoid "github.com/matoous/go-nanoid/v2"

	config "github.com/crosspost-app/crosspost/configs"
)

// StorageService wraps the Cloudflare R2 bucket that holds post media.
type StorageService struct {
	config config.Config
}

func NewStorageService(cfg config.Config) *StorageService {
	return &StorageService{config: cfg}
}

func (r *StorageService) Client() (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(r.config.R2.AccessKey, r.config.R2.SecretKey, "")),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", r.config.R2.AccountID))
	}), nil
}

var allowedUploadTypes = map[string]struct{}{
	"mp4": {}, "mov": {}, "jpeg": {}, "png": {}, "jpg": {}, "gif": {},
}

// Upload sniffs the file type, stores the bytes under a generated key and
// returns the public URL for the object.
func (r *StorageService) Upload(ctx context.Context, file []byte) (string, error) {
	fileType, err := filetype.Match(file)
	if err != nil || fileType == types.Unknown {
		return "", fmt.Errorf("unsupported file type: %v", err)
	}
	if _, ok := allowedUploadTypes[fileType.Extension]; !ok {
		return "", fmt.Errorf("file type %s is not allowed", fileType.Extension)
	}

	key, err := gonanoid.New()
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}
	key = fmt.Sprintf("%s.%s", key, fileType.Extension)

	client, err := r.Client()
	if err != nil {
		return "", err
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(r.config.R2.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(file),
		ContentType: aws.String(fileType.MIME.Value),
	}

	if _, err := client.PutObject(ctx, input); err != nil {
		slog.Info(err.Error())
		return "", err
	}

	return fmt.Sprintf("%s/%s", r.config.R2.PublicURL, key), nil
}
