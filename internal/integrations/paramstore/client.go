package paramstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ErrNotFound is returned by getters that have no value for a name.
var ErrNotFound = errors.New("paramstore: parameter not found")

// ssmAPI is the minimal AWS SSM interface required by Client.
// *ssm.Client from aws-sdk-go-v2 satisfies this interface.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Getter resolves a named secret or setting. LLM integrations depend on this
// interface so they work with SSM in Lambda and with the environment locally.
type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// Client wraps an AWS SSM API for parameter retrieval.
type Client struct {
	api ssmAPI
}

// New creates a Client with the given SSM API implementation.
func New(api ssmAPI) (*Client, error) {
	if api == nil {
		return nil, errors.New("paramstore: api must not be nil")
	}
	return &Client{api: api}, nil
}

// GetParameter reads a decrypted SecureString or String parameter.
func (c *Client) GetParameter(ctx context.Context, name string) (string, error) {
	if c.api == nil {
		return "", errors.New("paramstore: client not initialized")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("paramstore: name is required")
	}

	withDecryption := true
	out, err := c.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &name,
		WithDecryption: &withDecryption,
	})
	if err != nil {
		return "", fmt.Errorf("paramstore: get parameter %q: %w", name, err)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", errors.New("paramstore: parameter missing value")
	}
	return *out.Parameter.Value, nil
}

// EnvGetter maps parameter names to environment variables. A value is
// returned as the {"token": ...} payload the LLM clients expect, unless it
// already looks like JSON.
type EnvGetter map[string]string

func (e EnvGetter) GetParameter(_ context.Context, name string) (string, error) {
	envKey, ok := e[strings.TrimSpace(name)]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	v := strings.TrimSpace(os.Getenv(envKey))
	if v == "" {
		return "", fmt.Errorf("%w: %s (env %s is empty)", ErrNotFound, name, envKey)
	}
	if strings.HasPrefix(v, "{") {
		return v, nil
	}
	return fmt.Sprintf(`{"token":%q}`, v), nil
}

// Chain tries each getter in order and returns the first value found.
type Chain []Getter

func (c Chain) GetParameter(ctx context.Context, name string) (string, error) {
	var errs []error
	for _, g := range c {
		if g == nil {
			continue
		}
		v, err := g.GetParameter(ctx, name)
		if err == nil {
			return v, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return "", errors.Join(errs...)
}
