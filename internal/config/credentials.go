package config

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"strings"
)

// StoreCredentials is the JSON service credential for the document store.
//
// PEM blocks pasted into a single-line environment variable usually arrive
// with literal "\n" sequences; ParseStoreCredentials turns those back into
// newlines.
type StoreCredentials struct {
	URI               string `json:"uri"`
	Database          string `json:"database"`
	ClientCertificate string `json:"client_certificate,omitempty"`
	PrivateKey        string `json:"private_key,omitempty"`
}

// ParseStoreCredentials decodes and validates the credential JSON.
func ParseStoreCredentials(raw string) (*StoreCredentials, error) {
	var c StoreCredentials
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("%w: STORE_CREDENTIALS (malformed JSON: %v)", ErrInvalidValue, err)
	}

	c.ClientCertificate = unescapeNewlines(c.ClientCertificate)
	c.PrivateKey = unescapeNewlines(c.PrivateKey)

	if c.URI == "" {
		return nil, fmt.Errorf("%w: STORE_CREDENTIALS.uri", ErrMissingRequiredValue)
	}
	if c.Database == "" {
		return nil, fmt.Errorf("%w: STORE_CREDENTIALS.database", ErrMissingRequiredValue)
	}
	if (c.ClientCertificate == "") != (c.PrivateKey == "") {
		return nil, fmt.Errorf("%w: STORE_CREDENTIALS (client_certificate and private_key must be set together)", ErrInvalidValue)
	}
	if c.ClientCertificate != "" {
		if _, err := c.X509KeyPair(); err != nil {
			return nil, fmt.Errorf("%w: STORE_CREDENTIALS (%v)", ErrInvalidValue, err)
		}
	}
	return &c, nil
}

// X509KeyPair returns the client certificate, or nil when none is configured.
func (c *StoreCredentials) X509KeyPair() (*tls.Certificate, error) {
	if c.ClientCertificate == "" {
		return nil, nil
	}
	pair, err := tls.X509KeyPair([]byte(c.ClientCertificate), []byte(c.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("loading client certificate: %w", err)
	}
	return &pair, nil
}

func unescapeNewlines(s string) string {
	return strings.ReplaceAll(s, `\n`, "\n")
}
