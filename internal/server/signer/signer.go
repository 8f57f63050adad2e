// Package signer computes the HMAC-SHA256 request signature required by the
// Volcengine OpenAPI gateway.
//
// The signature is built in four stages:
//
//  1. canonical request: method, path, query, sorted lower-cased headers,
//     signed-header list and payload hash joined by newlines;
//  2. string to sign: algorithm, timestamp, credential scope and the hash of
//     the canonical request;
//  3. signing key: HMAC chain over date, region, service and "request",
//     seeded with the secret key;
//  4. signature: hex HMAC of the string to sign under the signing key.
//
// Sign is pure. Every call needs a fresh timestamp, signatures are never
// cached.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"time"
)

const (
	Algorithm       = "HMAC-SHA256"
	ScopeTerminator = "request"

	// TimestampLayout is the X-Date format, e.g. 20240501T100000Z.
	TimestampLayout = "20060102T150405Z"
)

var (
	ErrMissingCredentials = errors.New("signer: access key and secret key are required")
	ErrInvalidTimestamp   = errors.New("signer: invalid timestamp")
	ErrDuplicateHeader    = errors.New("signer: duplicate header")
)

// Credentials are the static access key pair. The secret never appears in
// String or LogValue output.
type Credentials struct {
	AccessKey string
	SecretKey string
}

func (c Credentials) Valid() bool {
	return c.AccessKey != "" && c.SecretKey != ""
}

func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{AccessKey: %s, SecretKey: [REDACTED]}", c.AccessKey)
}

func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("access_key", c.AccessKey),
		slog.String("secret_key", "[REDACTED]"),
	)
}

// Scope is the region/service pair of the credential scope.
type Scope struct {
	Region  string
	Service string
}

// Request is everything that goes into the signature.
type Request struct {
	Method    string
	Path      string
	Query     url.Values
	Headers   map[string]string
	Body      []byte
	Timestamp string
}

// SignedRequest is the outcome of Sign.
type SignedRequest struct {
	Timestamp        string
	CanonicalQuery   string
	CanonicalRequest string
	CredentialScope  string
	SignedHeaders    string
	StringToSign     string
	Signature        string
	Authorization    string
}

// FormatTimestamp renders t in UTC in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// HashHex is the hex-encoded SHA-256 of b.
func HashHex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Sign signs req for creds within scope.
func Sign(req Request, creds Credentials, scope Scope) (*SignedRequest, error) {
	if !creds.Valid() {
		return nil, ErrMissingCredentials
	}
	if len(req.Timestamp) < 8 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimestamp, req.Timestamp)
	}

	canonicalHeaders, signedHeaders, err := canonicalizeHeaders(req.Headers)
	if err != nil {
		return nil, err
	}

	path := req.Path
	if path == "" {
		path = "/"
	}
	query := CanonicalQuery(req.Query)

	canonicalRequest := strings.Join([]string{
		req.Method,
		path,
		query,
		canonicalHeaders,
		"",
		signedHeaders,
		HashHex(req.Body),
	}, "\n")

	date := req.Timestamp[:8]
	credentialScope := strings.Join([]string{date, scope.Region, scope.Service, ScopeTerminator}, "/")

	stringToSign := strings.Join([]string{
		Algorithm,
		req.Timestamp,
		credentialScope,
		HashHex([]byte(canonicalRequest)),
	}, "\n")

	key := signingKey(creds.SecretKey, date, scope)
	signature := hex.EncodeToString(hmacSHA256(key, []byte(stringToSign)))

	return &SignedRequest{
		Timestamp:        req.Timestamp,
		CanonicalQuery:   query,
		CanonicalRequest: canonicalRequest,
		CredentialScope:  credentialScope,
		SignedHeaders:    signedHeaders,
		StringToSign:     stringToSign,
		Signature:        signature,
		Authorization: fmt.Sprintf("%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
			Algorithm, creds.AccessKey, credentialScope, signedHeaders, signature),
	}, nil
}

// CanonicalQuery sorts keys (and the values of a repeated key) by byte order
// and percent-encodes them, spaces as %20.
func CanonicalQuery(q url.Values) string {
	if len(q) == 0 {
		return ""
	}
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		vals := append([]string(nil), q[k]...)
		sort.Strings(vals)
		for _, v := range vals {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(escape(k))
			b.WriteByte('=')
			b.WriteString(escape(v))
		}
	}
	return b.String()
}

func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func canonicalizeHeaders(headers map[string]string) (string, string, error) {
	lowered := make(map[string]string, len(headers))
	names := make([]string, 0, len(headers))
	for k, v := range headers {
		name := strings.ToLower(k)
		if _, dup := lowered[name]; dup {
			return "", "", fmt.Errorf("%w: %s", ErrDuplicateHeader, name)
		}
		lowered[name] = v
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, len(names))
	for i, name := range names {
		lines[i] = name + ":" + lowered[name]
	}
	return strings.Join(lines, "\n"), strings.Join(names, ";"), nil
}

func signingKey(secret, date string, scope Scope) []byte {
	k := hmacSHA256([]byte(secret), []byte(date))
	k = hmacSHA256(k, []byte(scope.Region))
	k = hmacSHA256(k, []byte(scope.Service))
	return hmacSHA256(k, []byte(ScopeTerminator))
}

func hmacSHA256(key, data []byte) []byte {
	m := hmac.New(sha256.New, key)
	m.Write(data)
	return m.Sum(nil)
}
