package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"
)

// CaptchaVerifier gates sign-up against bots. A failed check is reported
// as ok=false with a reason, not as an error; err is for transport failures.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) (ok bool, reason string, err error)
}

const (
	captchaMissingToken  = "missing_token"
	captchaMissingSecret = "missing_secret"
	captchaWrongHost     = "hostname_mismatch"
	captchaFailed        = "verification_failed"
)

// RecaptchaVerifier checks reCAPTCHA v2 checkbox tokens against siteverify.
// When Hostnames is set, tokens solved on any other site are refused.
type RecaptchaVerifier struct {
	Secret     string
	Hostnames  []string
	Endpoint   string
	HTTPClient *http.Client
}

var _ CaptchaVerifier = (*RecaptchaVerifier)(nil)

type siteVerifyResult struct {
	Success    bool     `json:"success"`
	Hostname   string   `json:"hostname"`
	ErrorCodes []string `json:"error-codes"`
}

func NewRecaptchaVerifier(secret string, hostnames ...string) *RecaptchaVerifier {
	return &RecaptchaVerifier{
		Secret:     strings.TrimSpace(secret),
		Hostnames:  hostnames,
		Endpoint:   "https://www.google.com/recaptcha/api/siteverify",
		HTTPClient: &http.Client{Timeout: 8 * time.Second},
	}
}

func (v *RecaptchaVerifier) Verify(ctx context.Context, token, remoteIP string) (bool, string, error) {
	if v.Secret == "" {
		return false, captchaMissingSecret, nil
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return false, captchaMissingToken, nil
	}

	result, err := v.siteVerify(ctx, token, strings.TrimSpace(remoteIP))
	if err != nil {
		return false, "", err
	}

	switch {
	case !result.Success && len(result.ErrorCodes) > 0:
		return false, strings.Join(result.ErrorCodes, ","), nil
	case !result.Success:
		return false, captchaFailed, nil
	case len(v.Hostnames) > 0 && !slices.Contains(v.Hostnames, result.Hostname):
		slog.Warn("[Recaptcha] token solved on unexpected host", "hostname", result.Hostname)
		return false, captchaWrongHost, nil
	}
	return true, "", nil
}

func (v *RecaptchaVerifier) siteVerify(ctx context.Context, token, remoteIP string) (*siteVerifyResult, error) {
	form := url.Values{"secret": {v.Secret}, "response": {token}}
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := v.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("siteverify: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("siteverify http %d", resp.StatusCode)
	}
	var result siteVerifyResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode siteverify: %w", err)
	}
	return &result, nil
}
