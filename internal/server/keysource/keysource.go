// Package keysource locates the base64 master key that protects stored
// credentials. Sources, in order of precedence: inline value, local file,
// S3-compatible object (MinIO in most homelabs).
package keysource

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/homedock/internal/common"
	"github.com/dmitrijs2005/homedock/internal/cryptox"
	sc "github.com/dmitrijs2005/homedock/internal/server/config"
)

// maxKeyObjectSize bounds what is read from a file or object; a base64
// 32-byte key plus whitespace is far below it.
const maxKeyObjectSize = 4 << 10

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	getObject = func(c *s3.Client, ctx context.Context, in *s3.GetObjectInput) (*s3.GetObjectOutput, error) {
		return c.GetObject(ctx, in)
	}
)

// Source describes where the master key lives.
type Source struct {
	Inline string
	File   string

	S3Bucket   string
	S3Object   string
	S3Region   string
	S3Endpoint string
	S3User     string
	S3Password string
}

func FromConfig(c *sc.Config) Source {
	return Source{
		Inline:     c.MasterKey,
		File:       c.MasterKeyFile,
		S3Bucket:   c.S3Bucket,
		S3Object:   c.S3Object,
		S3Region:   c.S3Region,
		S3Endpoint: c.S3BaseEndpoint,
		S3User:     c.S3RootUser,
		S3Password: c.S3RootPassword,
	}
}

// Describe names the source that Load would use, for logs.
func (s Source) Describe() string {
	switch {
	case s.Inline != "":
		return "inline"
	case s.File != "":
		return "file:" + s.File
	case s.S3Bucket != "" && s.S3Object != "":
		return "s3://" + s.S3Bucket + "/" + s.S3Object
	}
	return "none"
}

// Load resolves and validates the 32-byte master key. Every failure wraps
// common.ErrConfiguration; messages never include key material.
func Load(ctx context.Context, s Source) ([]byte, error) {
	var (
		encoded string
		err     error
	)

	switch {
	case s.Inline != "":
		encoded = s.Inline
	case s.File != "":
		encoded, err = readFile(s.File)
	case s.S3Bucket != "" && s.S3Object != "":
		encoded, err = readObject(ctx, s)
	default:
		return nil, fmt.Errorf("%w: no master key source configured", common.ErrConfiguration)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: master key from %s: %v", common.ErrConfiguration, s.Describe(), err)
	}

	key, err := cryptox.ParseMasterKey(encoded)
	if err != nil {
		return nil, fmt.Errorf("master key from %s: %w", s.Describe(), err)
	}
	return key, nil
}

func readFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	b, err := io.ReadAll(io.LimitReader(f, maxKeyObjectSize))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func readObject(ctx context.Context, s Source) (string, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(s.S3Region)}
	if s.S3User != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s.S3User, s.S3Password, ""),
		))
	}

	cfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if s.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(s.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	out, err := getObject(client, ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.S3Bucket),
		Key:    aws.String(s.S3Object),
	})
	if err != nil {
		return "", fmt.Errorf("get object: %w", err)
	}
	defer out.Body.Close()

	b, err := io.ReadAll(io.LimitReader(out.Body, maxKeyObjectSize))
	if err != nil {
		return "", fmt.Errorf("read object: %w", err)
	}
	return string(b), nil
}
