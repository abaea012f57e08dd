// Package captcha verifies human-verification responses against Google
// reCAPTCHA's siteverify endpoint.
package captcha

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultVerifyURL = "https://www.google.com/recaptcha/api/siteverify"
	defaultTimeout   = 5 * time.Second
)

// Recaptcha implements ports.ChallengeVerifier.
type Recaptcha struct {
	secret    string
	verifyURL string
	client    *http.Client
}

// NewRecaptcha builds a verifier. An empty verifyURL selects the public
// endpoint; a nil client gets a short default timeout.
func NewRecaptcha(secret, verifyURL string, client *http.Client) *Recaptcha {
	if verifyURL == "" {
		verifyURL = DefaultVerifyURL
	}
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Recaptcha{secret: secret, verifyURL: verifyURL, client: client}
}

type siteverifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

// Verify returns false for rejected responses and an error only when the
// upstream could not be asked.
func (r *Recaptcha) Verify(ctx context.Context, response, clientIP string) (bool, error) {
	if response == "" {
		return false, nil
	}
	if r.secret == "" {
		return false, fmt.Errorf("recaptcha: secret not configured")
	}

	form := url.Values{}
	form.Set("secret", r.secret)
	form.Set("response", response)
	if clientIP != "" {
		form.Set("remoteip", clientIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("recaptcha: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("recaptcha: verify: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("recaptcha: unexpected status %d", resp.StatusCode)
	}

	var body siteverifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("recaptcha: decode: %w", err)
	}
	return body.Success, nil
}
