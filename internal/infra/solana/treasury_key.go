// internal/infra/solana/treasury_key.go
package solana

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	secretspb "cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	appclaim "tokenclaim/internal/application/claim"
	"tokenclaim/internal/domain/address"
	claimdom "tokenclaim/internal/domain/claim"
)

var (
	ErrTreasurySecretEmpty    = errors.New("treasury_key: secret is empty")
	ErrTreasurySecretNotFound = errors.New("treasury_key: secret not found")
	ErrTreasurySecretInvalid  = errors.New("treasury_key: invalid keypair")
)

// TreasurySigner holds the treasury keypair for the duration of one request.
type TreasurySigner struct {
	acc types.Account
}

func NewTreasurySigner(acc types.Account) *TreasurySigner {
	return &TreasurySigner{acc: acc}
}

func (s *TreasurySigner) PublicKey() common.PublicKey { return s.acc.PublicKey }

func (s *TreasurySigner) Sign(message []byte) []byte {
	return ed25519.Sign(s.acc.PrivateKey, message)
}

// Discard zeroes the private key bytes.
func (s *TreasurySigner) Discard() {
	for i := range s.acc.PrivateKey {
		s.acc.PrivateKey[i] = 0
	}
	s.acc.PrivateKey = nil
}

// AccountFromKeypairJSON restores a solana-keygen keypair (JSON array of 64 bytes).
func AccountFromKeypairJSON(data []byte) (types.Account, error) {
	keyBytes, err := decodeKeypairJSON(data)
	if err != nil {
		return types.Account{}, err
	}
	defer zero(keyBytes)

	// AccountFromBytes may alias its input; keyBytes is zeroed on return.
	acc, err := types.AccountFromBytes(append([]byte(nil), keyBytes...))
	if err != nil {
		return types.Account{}, fmt.Errorf("%w: AccountFromBytes: %v", ErrTreasurySecretInvalid, err)
	}
	return acc, nil
}

// decodeKeypairJSON parses the [u8;64] JSON array written by solana-keygen.
func decodeKeypairJSON(data []byte) ([]byte, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, ErrTreasurySecretEmpty
	}

	var ints []int
	if err := json.Unmarshal([]byte(trimmed), &ints); err != nil {
		return nil, fmt.Errorf("%w: unmarshal keypair json: %v", ErrTreasurySecretInvalid, err)
	}
	if len(ints) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrTreasurySecretInvalid, len(ints), ed25519.PrivateKeySize)
	}

	keyBytes := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			zero(keyBytes)
			return nil, fmt.Errorf("%w: byte out of range at %d", ErrTreasurySecretInvalid, i)
		}
		keyBytes[i] = byte(v)
	}
	return keyBytes, nil
}

// EncodeKeypairJSON renders the solana-keygen file format.
func EncodeKeypairJSON(acc types.Account) ([]byte, error) {
	ints := make([]int, len(acc.PrivateKey))
	for i, b := range acc.PrivateKey {
		ints[i] = int(b)
	}
	return json.Marshal(ints)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ------------------------------------------------------------
// Providers (appclaim.SignerProvider)
// ------------------------------------------------------------

// StaticKeySource re-parses the configured secret on every request, so no
// parsed key outlives a request.
type StaticKeySource struct {
	secret []byte
}

// NewEnvKeySource reads the keypair JSON from an environment value.
func NewEnvKeySource(secret string) *StaticKeySource {
	return &StaticKeySource{secret: []byte(strings.TrimSpace(secret))}
}

func (s *StaticKeySource) Treasury(context.Context) (appclaim.Signer, error) {
	if s == nil || len(s.secret) == 0 {
		return nil, fmt.Errorf("%w: %v", claimdom.ErrNotConfigured, ErrTreasurySecretEmpty)
	}
	acc, err := AccountFromKeypairJSON(s.secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", claimdom.ErrNotConfigured, err)
	}
	return NewTreasurySigner(acc), nil
}

// FileKeySource reads a solana-keygen keypair file per request.
type FileKeySource struct {
	Path string
}

func (s *FileKeySource) Treasury(context.Context) (appclaim.Signer, error) {
	if s == nil || strings.TrimSpace(s.Path) == "" {
		return nil, fmt.Errorf("%w: %v", claimdom.ErrNotConfigured, ErrTreasurySecretEmpty)
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: read keypair file: %v", claimdom.ErrNotConfigured, err)
	}
	defer zero(data)

	acc, err := AccountFromKeypairJSON(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", claimdom.ErrNotConfigured, err)
	}
	return NewTreasurySigner(acc), nil
}

// SecretVersionAccessor is the part of the Secret Manager client we use.
type SecretVersionAccessor interface {
	AccessSecretVersion(ctx context.Context, req *secretspb.AccessSecretVersionRequest) (*secretspb.AccessSecretVersionResponse, error)
}

// smClient adapts *secretmanager.Client (its method is variadic in call options).
type smClient struct{ c *secretmanager.Client }

func (a smClient) AccessSecretVersion(ctx context.Context, req *secretspb.AccessSecretVersionRequest) (*secretspb.AccessSecretVersionResponse, error) {
	return a.c.AccessSecretVersion(ctx, req)
}

// SecretManagerKeySource loads the keypair from a Secret Manager version path
// "projects/<PROJECT_ID>/secrets/<SECRET_ID>/versions/latest" per request.
type SecretManagerKeySource struct {
	Client SecretVersionAccessor
	Name   string

	closer func() error
	log    logrus.FieldLogger
}

func NewSecretManagerKeySource(ctx context.Context, name string) (*SecretManagerKeySource, error) {
	n := strings.TrimSpace(name)
	if n == "" {
		return nil, fmt.Errorf("%w: secret name is empty", claimdom.ErrNotConfigured)
	}
	c, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("secretmanager.NewClient: %w", err)
	}
	return &SecretManagerKeySource{
		Client: smClient{c: c},
		Name:   n,
		closer: c.Close,
		log:    logrus.WithField("component", "treasury_key"),
	}, nil
}

func (s *SecretManagerKeySource) Close() error {
	if s == nil || s.closer == nil {
		return nil
	}
	return s.closer()
}

func (s *SecretManagerKeySource) Treasury(ctx context.Context) (appclaim.Signer, error) {
	if s == nil || s.Client == nil || s.Name == "" {
		return nil, fmt.Errorf("%w: secret manager not configured", claimdom.ErrNotConfigured)
	}

	resp, err := s.Client.AccessSecretVersion(ctx, &secretspb.AccessSecretVersionRequest{Name: s.Name})
	if err != nil {
		switch status.Code(err) {
		case codes.NotFound, codes.PermissionDenied:
			return nil, fmt.Errorf("%w: %v: %v", claimdom.ErrNotConfigured, ErrTreasurySecretNotFound, err)
		}
		return nil, fmt.Errorf("AccessSecretVersion: %w", err)
	}
	if resp == nil || resp.Payload == nil || len(resp.Payload.Data) == 0 {
		return nil, fmt.Errorf("%w: %v", claimdom.ErrNotConfigured, ErrTreasurySecretEmpty)
	}
	defer zero(resp.Payload.Data)

	acc, err := AccountFromKeypairJSON(resp.Payload.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", claimdom.ErrNotConfigured, err)
	}

	if s.log != nil {
		s.log.WithField("pubkey", address.MaskShort(acc.PublicKey.ToBase58())).Debug("loaded treasury key from secret manager")
	}
	return NewTreasurySigner(acc), nil
}
