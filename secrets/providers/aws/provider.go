// Package aws stores git credentials in AWS Secrets Manager.
//
// Secrets are addressed by SecretRef.Path with an optional prefix, so the
// credential for github.com lives under "<prefix>git/github.com". Values are
// kept as SecretString; credentials are always text.
//
// For LocalStack and other compatible endpoints:
//
//	provider, err := aws.New(ctx, aws.WithEndpoint("http://localhost:4566"))
package aws

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/smithy-go"

	"github.com/codex-libs/repofacade/secrets"
)

const providerName = "aws"

// SecretsManagerAPI is the subset of the Secrets Manager client the
// provider calls. Tests substitute a fake.
type SecretsManagerAPI interface {
	GetSecretValue(
		ctx context.Context,
		params *secretsmanager.GetSecretValueInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.GetSecretValueOutput, error)
	DescribeSecret(
		ctx context.Context,
		params *secretsmanager.DescribeSecretInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.DescribeSecretOutput, error)
	CreateSecret(
		ctx context.Context,
		params *secretsmanager.CreateSecretInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.CreateSecretOutput, error)
	PutSecretValue(
		ctx context.Context,
		params *secretsmanager.PutSecretValueInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.PutSecretValueOutput, error)
	DeleteSecret(
		ctx context.Context,
		params *secretsmanager.DeleteSecretInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.DeleteSecretOutput, error)
}

// Provider is a secrets.WriteableProvider over AWS Secrets Manager.
// It is safe for concurrent use.
type Provider struct {
	client SecretsManagerAPI
	config *Config
}

var _ secrets.WriteableProvider = (*Provider)(nil)

// Config holds the provider configuration.
type Config struct {
	Region     string
	MaxRetries int
	// Endpoint overrides the service endpoint. Anonymous credentials are
	// used when it is set.
	Endpoint string
	// PathPrefix is prepended to every secret path.
	PathPrefix string
	// ForceDelete skips the recovery window on Delete.
	ForceDelete bool
}

// Option configures the provider.
type Option func(*Config)

// WithRegion sets the AWS region. Empty defers to the SDK's resolution chain.
func WithRegion(region string) Option {
	return func(c *Config) {
		c.Region = region
	}
}

// WithMaxRetries sets the SDK retry attempts.
func WithMaxRetries(maxRetries int) Option {
	return func(c *Config) {
		c.MaxRetries = maxRetries
	}
}

// WithEndpoint points the client at a custom endpoint such as LocalStack.
func WithEndpoint(endpoint string) Option {
	return func(c *Config) {
		c.Endpoint = endpoint
	}
}

// WithPathPrefix namespaces every secret path.
func WithPathPrefix(prefix string) Option {
	return func(c *Config) {
		c.PathPrefix = prefix
	}
}

// WithForceDelete deletes secrets without a recovery window.
func WithForceDelete(force bool) Option {
	return func(c *Config) {
		c.ForceDelete = force
	}
}

// New loads the AWS configuration and builds a provider.
func New(ctx context.Context, opts ...Option) (*Provider, error) {
	cfg := &Config{}
	for _, opt := range opts {
		opt(cfg)
	}

	loadOpts := []func(*config.LoadOptions) error{}
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	if cfg.MaxRetries > 0 {
		loadOpts = append(loadOpts, config.WithRetryMaxAttempts(cfg.MaxRetries))
	}
	if cfg.Endpoint != "" {
		if cfg.Region == "" {
			loadOpts = append(loadOpts, config.WithRegion("us-east-1"))
		}
		loadOpts = append(loadOpts, config.WithCredentialsProvider(aws.AnonymousCredentials{}))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := secretsmanager.NewFromConfig(awsCfg, func(o *secretsmanager.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewWithClient(client, cfg), nil
}

// NewWithClient wraps an existing client. A nil config is treated as empty.
func NewWithClient(client SecretsManagerAPI, cfg *Config) *Provider {
	if cfg == nil {
		cfg = &Config{}
	}
	return &Provider{client: client, config: cfg}
}

// Name returns "aws".
func (p *Provider) Name() string {
	return providerName
}

// Close is a no-op; the SDK client holds no resources needing release.
func (p *Provider) Close() error {
	return nil
}

func (p *Provider) id(ref secrets.SecretRef) string {
	return p.config.PathPrefix + ref.Path
}

// Resolve fetches the secret value. ref.Version may be a version id or one
// of the AWSCURRENT/AWSPREVIOUS/AWSPENDING stages.
func (p *Provider) Resolve(ctx context.Context, ref secrets.SecretRef) (*secrets.Secret, error) {
	if err := secrets.ValidateRef(ref); err != nil {
		return nil, err
	}

	input := &secretsmanager.GetSecretValueInput{SecretId: aws.String(p.id(ref))}
	if ref.Version != "" {
		if isStage(ref.Version) {
			input.VersionStage = aws.String(ref.Version)
		} else {
			input.VersionId = aws.String(ref.Version)
		}
	}

	out, err := p.client.GetSecretValue(ctx, input)
	if err != nil {
		return nil, mapAWSError(ref, err, "failed to resolve secret")
	}

	var value []byte
	switch {
	case out.SecretString != nil:
		value = []byte(*out.SecretString)
	case out.SecretBinary != nil:
		value = append([]byte(nil), out.SecretBinary...)
	default:
		return nil, fmt.Errorf("secret %q has no value: %w", ref.Path, secrets.ErrProviderError)
	}

	s := &secrets.Secret{Value: value, Version: aws.ToString(out.VersionId)}
	if out.CreatedDate != nil {
		s.CreatedAt = *out.CreatedDate
	}
	return s, nil
}

// Exists uses DescribeSecret so the value never leaves AWS. Secrets
// scheduled for deletion count as missing.
func (p *Provider) Exists(ctx context.Context, ref secrets.SecretRef) (bool, error) {
	if err := secrets.ValidateRef(ref); err != nil {
		return false, err
	}

	out, err := p.client.DescribeSecret(ctx, &secretsmanager.DescribeSecretInput{
		SecretId: aws.String(p.id(ref)),
	})
	if err != nil {
		var rnf *types.ResourceNotFoundException
		if errors.As(err, &rnf) {
			return false, nil
		}
		var ire *types.InvalidRequestException
		if errors.As(err, &ire) && strings.Contains(ire.ErrorMessage(), "marked deleted") {
			return false, nil
		}
		return false, mapAWSError(ref, err, "failed to check secret existence")
	}
	return out.DeletedDate == nil, nil
}

// Store creates the secret or puts a new version of it.
func (p *Provider) Store(ctx context.Context, ref secrets.SecretRef, value []byte) error {
	if err := secrets.ValidateRef(ref); err != nil {
		return err
	}

	exists, err := p.Exists(ctx, ref)
	if err != nil {
		return err
	}

	if exists {
		_, err = p.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
			SecretId:     aws.String(p.id(ref)),
			SecretString: aws.String(string(value)),
		})
		return mapAWSError(ref, err, "failed to update secret")
	}

	_, err = p.client.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
		Name:         aws.String(p.id(ref)),
		SecretString: aws.String(string(value)),
		Description:  aws.String("git credential managed by repofacade"),
	})
	return mapAWSError(ref, err, "failed to create secret")
}

// Delete schedules the secret for deletion. Deleting a missing secret is
// not an error.
func (p *Provider) Delete(ctx context.Context, ref secrets.SecretRef) error {
	if err := secrets.ValidateRef(ref); err != nil {
		return err
	}

	exists, err := p.Exists(ctx, ref)
	if err != nil || !exists {
		return err
	}

	input := &secretsmanager.DeleteSecretInput{SecretId: aws.String(p.id(ref))}
	if p.config.ForceDelete {
		input.ForceDeleteWithoutRecovery = aws.Bool(true)
	} else {
		input.RecoveryWindowInDays = aws.Int64(7)
	}
	_, err = p.client.DeleteSecret(ctx, input)
	return mapAWSError(ref, err, "failed to delete secret")
}

func isStage(v string) bool {
	switch v {
	case "AWSCURRENT", "AWSPREVIOUS", "AWSPENDING":
		return true
	default:
		return false
	}
}

// mapAWSError folds SDK errors onto the secrets sentinels. It returns nil
// for a nil err.
func mapAWSError(ref secrets.SecretRef, err error, msg string) error {
	if err == nil {
		return nil
	}

	var rnf *types.ResourceNotFoundException
	if errors.As(err, &rnf) {
		return fmt.Errorf("secret %q: %w", ref.Path, secrets.ErrSecretNotFound)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		if code == "AccessDeniedException" || code == "UnrecognizedClientException" ||
			strings.Contains(strings.ToLower(apiErr.ErrorMessage()), "access denied") {
			return fmt.Errorf("secret %q: %w: %s", ref.Path, secrets.ErrAccessDenied, apiErr.ErrorMessage())
		}
	}

	return secrets.WrapProviderError(providerName, ref, fmt.Errorf("%w: %w", secrets.ErrProviderError, err), msg)
}
