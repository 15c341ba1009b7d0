package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/example/bookhub/internal/domain/registry"
	"github.com/example/bookhub/internal/domain/reservation"
	"github.com/example/bookhub/internal/internaltypes"
)

// Sealer encrypts credential blobs; ad binds a blob to its reference.
type Sealer interface {
	Seal(plaintext, ad []byte) ([]byte, error)
	Open(sealed, ad []byte) ([]byte, error)
}

// CredentialKeys lists the secret names each live provider accepts.
var CredentialKeys = map[string][]string{
	reservation.ProviderZenchef:   {"api_key", "base_url"},
	reservation.ProviderOpenTable: {"token", "pq_hash"},
	reservation.ProviderResy:      {"api_key", "auth_token"},
}

// DefaultRef is the credential reference used when a link names none.
func DefaultRef(provider string) string { return provider + "/default" }

type CredentialsService struct {
	Store registry.Store
	AEAD  Sealer
	Now   func() time.Time
}

// Set seals values and stores them under ref, replacing what was there. An
// empty ref is the provider's default reference. A ref already holding
// another provider's credentials is rejected.
func (s CredentialsService) Set(ctx context.Context, provider, ref string, values map[string]string) (string, error) {
	allowed, ok := CredentialKeys[provider]
	if !ok {
		return "", internaltypes.UnknownProvider(provider, credentialProviders())
	}
	if ref = strings.TrimSpace(ref); ref == "" {
		ref = DefaultRef(provider)
	}
	clean := map[string]string{}
	var violations []internaltypes.Violation
	for k, v := range values {
		if !contains(allowed, k) {
			violations = append(violations, internaltypes.Violation{Field: k, Message: fmt.Sprintf("%s does not take %q (expected one of %s)", provider, k, strings.Join(allowed, ", "))})
			continue
		}
		if v = strings.TrimSpace(v); v != "" {
			clean[k] = v
		}
	}
	if len(violations) > 0 {
		return "", internaltypes.NewValidationError(violations...)
	}
	if s.AEAD == nil {
		return "", errors.New("credential encryption key is not configured")
	}
	if c, err := s.Store.GetCredential(ctx, ref); err == nil && c.Provider != provider {
		return "", internaltypes.Invalid("ref", "%s holds %s credentials", ref, c.Provider)
	}

	plain, err := json.Marshal(clean)
	if err != nil {
		return "", err
	}
	sealed, err := s.AEAD.Seal(plain, []byte(ref))
	if err != nil {
		return "", fmt.Errorf("seal credentials: %w", err)
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	at := now().UTC()
	if err := s.Store.PutCredential(ctx, registry.Credential{Ref: ref, Provider: provider, Sealed: sealed, CreatedAt: at, UpdatedAt: at}); err != nil {
		return "", err
	}
	return ref, nil
}

// Get opens the credentials stored under ref.
func (s CredentialsService) Get(ctx context.Context, ref string) (map[string]string, error) {
	c, err := s.Store.GetCredential(ctx, ref)
	if err != nil {
		return nil, err
	}
	if s.AEAD == nil {
		return nil, errors.New("credential encryption key is not configured")
	}
	plain, err := s.AEAD.Open(c.Sealed, []byte(ref))
	if err != nil {
		return nil, fmt.Errorf("open credentials %s: %w", ref, err)
	}
	out := map[string]string{}
	if err := json.Unmarshal(plain, &out); err != nil {
		return nil, fmt.Errorf("decode credentials %s: %w", ref, err)
	}
	return out, nil
}

// ForProvider returns the provider's default stored credentials, or an
// empty map when none are stored or no key is configured.
func (s CredentialsService) ForProvider(ctx context.Context, provider string) (map[string]string, error) {
	if s.AEAD == nil || s.Store == nil {
		return map[string]string{}, nil
	}
	out, err := s.Get(ctx, DefaultRef(provider))
	if errors.Is(err, internaltypes.ErrNotFound) {
		return map[string]string{}, nil
	}
	return out, err
}

// ForRef returns the credentials a link names. An empty or default ref falls
// back to ForProvider. Any other ref must exist and belong to provider, so a
// link never runs on another account's credentials.
func (s CredentialsService) ForRef(ctx context.Context, provider, ref string) (map[string]string, error) {
	if ref == "" || ref == DefaultRef(provider) {
		return s.ForProvider(ctx, provider)
	}
	if s.AEAD == nil || s.Store == nil {
		return nil, fmt.Errorf("credentials %s: credential encryption key is not configured", ref)
	}
	c, err := s.Store.GetCredential(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("credentials %s: %w", ref, err)
	}
	if c.Provider != provider {
		return nil, internaltypes.Invalid("credential_ref", "%s holds %s credentials, not %s", ref, c.Provider, provider)
	}
	return s.Get(ctx, ref)
}

func credentialProviders() []string {
	out := make([]string, 0, len(CredentialKeys))
	for p := range CredentialKeys {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
