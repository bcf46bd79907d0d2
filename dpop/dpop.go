// Package dpop creates DPoP proofs (RFC 9449) for token-exchange requests.
//
// A proof is a short-lived JWT binding an HTTP method and URI to an
// ephemeral keypair. The keypair lives for exactly one exchange call; only
// the proof claims change between nonce retries, never the key.
package dpop

import (
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"
	josejwt "github.com/go-jose/go-jose/v4/jwt"
	"github.com/google/uuid"
)

// TypeDPoP is the required typ header value for DPoP proofs.
const TypeDPoP = "dpop+jwt"

const keyBits = 2048

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// KeyPair is an ephemeral RSA keypair owned by a single token-exchange
// attempt. It is never persisted or reused across calls.
type KeyPair struct {
	private *rsa.PrivateKey
}

// GenerateKeyPair creates a fresh RSA-2048 keypair.
func GenerateKeyPair() (*KeyPair, error) {
	private, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return nil, fmt.Errorf("generate DPoP key: %w", err)
	}
	return &KeyPair{private: private}, nil
}

// PublicKey returns the public half of the keypair.
func (kp *KeyPair) PublicKey() *rsa.PublicKey {
	return &kp.private.PublicKey
}

// proofClaims are the payload claims of a DPoP proof.
type proofClaims struct {
	JTI   string `json:"jti"`
	HTM   string `json:"htm"`
	HTU   string `json:"htu"`
	IAT   int64  `json:"iat"`
	Nonce string `json:"nonce,omitempty"`
}

// Proof creates a signed proof for one HTTP attempt. nonce is the
// server-issued DPoP nonce, empty on the first attempt. Each call produces
// a fresh jti and timestamp, so a proof is never valid for more than one
// request.
func (kp *KeyPair) Proof(method, uri, nonce string) (string, error) {
	htu, err := normalizeURI(uri)
	if err != nil {
		return "", err
	}

	opts := (&jose.SignerOptions{}).
		WithType(TypeDPoP).
		WithHeader("jwk", jose.JSONWebKey{
			Key:       kp.PublicKey(),
			Algorithm: string(jose.RS256),
			Use:       "sig",
		})

	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.RS256, Key: kp.private}, opts)
	if err != nil {
		return "", fmt.Errorf("create proof signer: %w", err)
	}

	claims := proofClaims{
		JTI:   uuid.New().String(),
		HTM:   method,
		HTU:   htu,
		IAT:   NowTimeFunc().Unix(),
		Nonce: nonce,
	}

	proof, err := josejwt.Signed(signer).Claims(claims).Serialize()
	if err != nil {
		return "", fmt.Errorf("serialize proof: %w", err)
	}
	return proof, nil
}

// normalizeURI normalizes the htu claim per RFC 9449 section 4.2: lowercase
// scheme and host, no query or fragment, default ports removed.
func normalizeURI(rawURI string) (string, error) {
	parsed, err := url.Parse(rawURI)
	if err != nil {
		return "", fmt.Errorf("invalid proof URI: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("proof URI must have scheme and host")
	}

	scheme := strings.ToLower(parsed.Scheme)
	host := strings.ToLower(parsed.Hostname())

	if port := parsed.Port(); port != "" {
		defaultPort := (scheme == "https" && port == "443") || (scheme == "http" && port == "80")
		if !defaultPort {
			host = host + ":" + port
		}
	}

	path := parsed.Path
	if path == "" {
		path = "/"
	}

	return scheme + "://" + host + path, nil
}
