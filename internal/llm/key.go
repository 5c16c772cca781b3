package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// ParamGetter reads a named configuration parameter (SSM or environment).
type ParamGetter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// tokenPayload is the JSON shape stored under a key parameter.
type tokenPayload struct {
	Token string `json:"token"`
}

// KeyRetryInterval is how long a failed key lookup is reported before the
// parameter is read again.
const KeyRetryInterval = 30 * time.Second

// APIKey resolves a provider API key stored as {"token": "..."} on first use.
// A resolved key is kept for the lifetime of the process; a failure is kept
// only for KeyRetryInterval.
type APIKey struct {
	getter ParamGetter
	name   string
	now    func() time.Time

	mu       sync.Mutex
	value    string
	err      error
	failedAt time.Time
}

func NewAPIKey(getter ParamGetter, name string) *APIKey {
	return &APIKey{getter: getter, name: strings.TrimSpace(name), now: time.Now}
}

// Name is the parameter the key is read from.
func (k *APIKey) Name() string {
	return k.name
}

func (k *APIKey) Resolve(ctx context.Context) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.value != "" {
		return k.value, nil
	}
	if k.err != nil && k.now().Sub(k.failedAt) < KeyRetryInterval {
		return "", k.err
	}
	value, err := ReadToken(ctx, k.getter, k.name)
	if err != nil {
		k.err, k.failedAt = err, k.now()
		return "", err
	}
	k.value, k.err = value, nil
	return value, nil
}

// ReadToken fetches parameter name and returns its token field.
func ReadToken(ctx context.Context, getter ParamGetter, name string) (string, error) {
	if getter == nil {
		return "", errors.New("llm: key getter is nil")
	}
	if name == "" {
		return "", errors.New("llm: key parameter name is empty")
	}
	raw, err := getter.GetParameter(ctx, name)
	if err != nil {
		return "", fmt.Errorf("llm: fetch key %s: %w", name, err)
	}
	var tp tokenPayload
	if err := json.Unmarshal([]byte(raw), &tp); err != nil {
		return "", fmt.Errorf("llm: unmarshal key %s as JSON: %w", name, err)
	}
	if strings.TrimSpace(tp.Token) == "" {
		return "", fmt.Errorf("llm: API key is empty in %s", name)
	}
	return strings.TrimSpace(tp.Token), nil
}
