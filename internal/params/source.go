// Package params resolves dependency configuration (bucket, table, partition-key
// attribute, search API key) from AWS SSM Parameter Store and Secrets Manager.
package params

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// Static errors for parameter lookups.
var (
	// ErrNotFound is returned when a parameter or secret does not exist.
	ErrNotFound = errors.New("params: not found")
	// ErrEmptyValue is returned when a parameter or secret resolves to an empty value.
	ErrEmptyValue = errors.New("params: empty value")
)

// Source looks up named configuration values.
type Source interface {
	// Parameter returns the value of a Parameter Store entry.
	Parameter(ctx context.Context, name string) (string, error)
	// Secret returns the string value of a Secrets Manager entry.
	Secret(ctx context.Context, name string) (string, error)
}

// SSMAPI is the subset of the SSM client used by AWSSource.
type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// SecretsAPI is the subset of the Secrets Manager client used by AWSSource.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// Compile-time checks.
var (
	_ Source = (*AWSSource)(nil)
	_ Source = (*StaticSource)(nil)
)

// AWSSource reads parameters from SSM and secrets from Secrets Manager.
type AWSSource struct {
	ssm     SSMAPI
	secrets SecretsAPI
}

// NewAWSSource creates an AWSSource from SSM and Secrets Manager clients.
func NewAWSSource(ssmClient SSMAPI, secretsClient SecretsAPI) *AWSSource {
	return &AWSSource{ssm: ssmClient, secrets: secretsClient}
}

// Parameter returns the decrypted value of the named SSM parameter.
func (s *AWSSource) Parameter(ctx context.Context, name string) (string, error) {
	out, err := s.ssm.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("get parameter %s: %w", name, err)
	}
	if out.Parameter == nil || aws.ToString(out.Parameter.Value) == "" {
		return "", fmt.Errorf("parameter %s: %w", name, ErrEmptyValue)
	}
	return aws.ToString(out.Parameter.Value), nil
}

// Secret returns the SecretString of the named secret.
func (s *AWSSource) Secret(ctx context.Context, name string) (string, error) {
	out, err := s.secrets.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		return "", fmt.Errorf("get secret %s: %w", name, err)
	}
	if aws.ToString(out.SecretString) == "" {
		return "", fmt.Errorf("secret %s: %w", name, ErrEmptyValue)
	}
	return aws.ToString(out.SecretString), nil
}

// StaticSource serves values from in-memory maps.
// It backs local runs with STORE_BACKEND=memory and tests.
type StaticSource struct {
	mu      sync.RWMutex
	params  map[string]string
	secrets map[string]string
}

// NewStaticSource creates a StaticSource. Either map may be nil.
func NewStaticSource(params, secrets map[string]string) *StaticSource {
	s := &StaticSource{
		params:  make(map[string]string, len(params)),
		secrets: make(map[string]string, len(secrets)),
	}
	for k, v := range params {
		s.params[k] = v
	}
	for k, v := range secrets {
		s.secrets[k] = v
	}
	return s
}

// SetParameter sets or replaces a parameter value.
func (s *StaticSource) SetParameter(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params[name] = value
}

// Parameter returns the named parameter or ErrNotFound.
func (s *StaticSource) Parameter(_ context.Context, name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.params[name]
	if !ok {
		return "", fmt.Errorf("parameter %s: %w", name, ErrNotFound)
	}
	return v, nil
}

// Secret returns the named secret or ErrNotFound.
func (s *StaticSource) Secret(_ context.Context, name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.secrets[name]
	if !ok {
		return "", fmt.Errorf("secret %s: %w", name, ErrNotFound)
	}
	return v, nil
}
