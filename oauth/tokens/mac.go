package tokens

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"hash"
	"net/http"
	"strings"
	"time"

	"github.com/Seann-Moser/oauth2core/utils"
)

const (
	HMACSHA1   = "hmac-sha-1"
	HMACSHA256 = "hmac-sha-256"
)

var ErrUnsupportedAlgorithm = errors.New("unsupported mac algorithm")

// MACSigner computes the digests a MAC token header needs. The algorithm
// names are the ones a MAC token response advertises, e.g. hmac-sha-1.
type MACSigner interface {
	Hash(algorithm string, data []byte) ([]byte, error)
	Sign(algorithm string, key, data []byte) ([]byte, error)
}

// HMACSigner supports hmac-sha-1 and hmac-sha-256.
type HMACSigner struct{}

var _ MACSigner = HMACSigner{}

func (HMACSigner) Hash(algorithm string, data []byte) ([]byte, error) {
	h, err := hashFor(algorithm)
	if err != nil {
		return nil, err
	}
	m := h()
	m.Write(data)
	return m.Sum(nil), nil
}

func (HMACSigner) Sign(algorithm string, key, data []byte) ([]byte, error) {
	h, err := hashFor(algorithm)
	if err != nil {
		return nil, err
	}
	mac := hmac.New(h, key)
	mac.Write(data)
	return mac.Sum(nil), nil
}

func hashFor(algorithm string) (func() hash.Hash, error) {
	switch strings.ToLower(algorithm) {
	case HMACSHA1:
		return sha1.New, nil
	case HMACSHA256:
		return sha256.New, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, algorithm)
	}
}

// MACRequest is everything needed to sign one request with a MAC token.
type MACRequest struct {
	Token     string
	Key       string
	Algorithm string
	Method    string
	URI       string
	// Body is hashed into bodyhash when non-empty.
	Body    string
	Ext     string
	Headers http.Header
	// IssuedAt and Now give the age part of the nonce.
	IssuedAt time.Time
	Now      time.Time
	// Nonce overrides the generated nonce.
	Nonce string
}

// PrepareMACHeader returns a copy of req.Headers with a MAC Authorization
// header added, following draft-ietf-oauth-v2-http-mac-00.
func PrepareMACHeader(req MACRequest, signer MACSigner) (http.Header, error) {
	if signer == nil {
		signer = HMACSigner{}
	}
	if req.Algorithm == "" {
		req.Algorithm = HMACSHA1
	}
	nonce := req.Nonce
	if nonce == "" {
		n, err := newNonce(req.IssuedAt, req.Now)
		if err != nil {
			return nil, err
		}
		nonce = n
	}
	requestURI, err := utils.RequestURI(req.URI)
	if err != nil {
		return nil, err
	}
	host, port, err := utils.HostPort(req.URI)
	if err != nil {
		return nil, err
	}

	var bodyHash string
	if req.Body != "" {
		sum, err := signer.Hash(req.Algorithm, []byte(req.Body))
		if err != nil {
			return nil, err
		}
		bodyHash = base64.StdEncoding.EncodeToString(sum)
	}

	base := strings.Join([]string{
		nonce,
		strings.ToUpper(req.Method),
		requestURI,
		host,
		port,
		bodyHash,
		req.Ext,
	}, "\n") + "\n"

	sig, err := signer.Sign(req.Algorithm, []byte(req.Key), []byte(base))
	if err != nil {
		return nil, err
	}

	parts := []string{
		fmt.Sprintf(`MAC id="%s"`, req.Token),
		fmt.Sprintf(`nonce="%s"`, nonce),
	}
	if bodyHash != "" {
		parts = append(parts, fmt.Sprintf(`bodyhash="%s"`, bodyHash))
	}
	if req.Ext != "" {
		parts = append(parts, fmt.Sprintf(`ext="%s"`, req.Ext))
	}
	parts = append(parts, fmt.Sprintf(`mac="%s"`, base64.StdEncoding.EncodeToString(sig)))

	out := cloneHeader(req.Headers)
	out.Set("Authorization", strings.Join(parts, ", "))
	return out, nil
}

// nonce is "<seconds since issue>:<random>"
func newNonce(issuedAt, now time.Time) (string, error) {
	if now.IsZero() {
		now = time.Now()
	}
	age := int64(0)
	if !issuedAt.IsZero() && now.After(issuedAt) {
		age = int64(now.Sub(issuedAt) / time.Second)
	}
	r, err := utils.GenerateToken(16)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d:%s", age, r), nil
}
