package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/spf13/viper"
)

// Objects bigger than this go through the multipart uploader
const minMultipartSize = 8 << 20

// Upper bound for a single S3 round trip
const callTimeout = 30 * time.Second

const publicTag = "public"

type S3Store struct {
	c       *s3.Client
	presign *s3.PresignClient
	bucket  *string
	baseURL string
}

func NewS3() (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			viper.GetString("aws.access_key"),
			viper.GetString("aws.secret_access_key"),
			"",
		)),
	)
	if err != nil {
		return nil, err
	}

	bucket := aws.String(viper.GetString("aws.bucket"))
	region := viper.GetString("aws.region")

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.Region = region
	})

	_, err = client.HeadBucket(context.TODO(), &s3.HeadBucketInput{
		Bucket: bucket,
	})
	if err != nil {
		var apiErr smithy.APIError

		if errors.As(err, &apiErr) {
			if apiErr.ErrorCode() == "NotFound" {
				return nil, fmt.Errorf("bucket '%s' does not exist", *bucket)
			}
		}

		return nil, fmt.Errorf("failed to check if bucket exists, %w", err)
	}

	baseURL := viper.GetString("aws.public_url")
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", *bucket, region)
	}

	return &S3Store{
		c:       client,
		presign: s3.NewPresignClient(client),
		bucket:  bucket,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}, nil
}

func (s *S3Store) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string, public bool) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	acl := types.ObjectCannedACLPrivate
	if public {
		acl = types.ObjectCannedACLPublicRead
	}

	input := &s3.PutObjectInput{
		Bucket:        s.bucket,
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
		ACL:           acl,
	}

	var err error
	if size > minMultipartSize {
		uploader := manager.NewUploader(s.c, func(u *manager.Uploader) {
			u.Concurrency = 5
			u.PartSize = 6 << 20
		})
		_, err = uploader.Upload(ctx, input)
	} else {
		_, err = s.c.PutObject(ctx, input)
	}
	if err != nil {
		return fmt.Errorf("failed to upload object, %w", err)
	}

	if public {
		return s.putTags(ctx, key, true)
	}

	return nil
}

func (s *S3Store) SignedURL(ctx context.Context, ownerID, key string, ttl time.Duration) (string, error) {
	if !owned(ownerID, key) {
		return "", ErrForeignKey
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: s.bucket,
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("failed to presign object, %w", err)
	}

	return req.URL, nil
}

func (s *S3Store) PublicURL(ctx context.Context, key string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	resp, err := s.c.GetObjectTagging(ctx, &s3.GetObjectTaggingInput{
		Bucket: s.bucket,
		Key:    aws.String(key),
	})
	if err != nil {
		// Treated the same as "not public", the caller falls back to a
		// signed URL
		return "", false
	}

	for _, tag := range resp.TagSet {
		if aws.ToString(tag.Key) == publicTag && aws.ToString(tag.Value) == "true" {
			return s.directURL(key), true
		}
	}

	return "", false
}

func (s *S3Store) SetVisibility(ctx context.Context, ownerID, key string, public bool) error {
	if !owned(ownerID, key) {
		return ErrForeignKey
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	acl := types.ObjectCannedACLPrivate
	if public {
		acl = types.ObjectCannedACLPublicRead
	}

	_, err := s.c.PutObjectAcl(ctx, &s3.PutObjectAclInput{
		Bucket: s.bucket,
		Key:    aws.String(key),
		ACL:    acl,
	})
	if err != nil {
		return fmt.Errorf("failed to update object ACL, %w", err)
	}

	return s.putTags(ctx, key, public)
}

func (s *S3Store) Delete(ctx context.Context, ownerID, key string) error {
	if !owned(ownerID, key) {
		return ErrForeignKey
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	_, err := s.c.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: s.bucket,
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object, %w", err)
	}

	return nil
}

func (s *S3Store) putTags(ctx context.Context, key string, public bool) error {
	tags := []types.Tag{}
	if public {
		tags = append(tags, types.Tag{
			Key:   aws.String(publicTag),
			Value: aws.String("true"),
		})
	}

	_, err := s.c.PutObjectTagging(ctx, &s3.PutObjectTaggingInput{
		Bucket:  s.bucket,
		Key:     aws.String(key),
		Tagging: &types.Tagging{TagSet: tags},
	})
	if err != nil {
		return fmt.Errorf("failed to tag object, %w", err)
	}

	return nil
}

func (s *S3Store) directURL(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}

	return s.baseURL + "/" + strings.Join(parts, "/")
}
