package social

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/kether-core/internal/core/domain"
	"github.com/arklim/kether-core/internal/core/port"
	"github.com/arklim/kether-core/internal/infra/logger"
)

// HTTPVerifier asks a remote ownership service whether a proof token belongs to the account.
type HTTPVerifier struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

type verifyRequest struct {
	Platform   string `json:"platform"`
	Username   string `json:"username"`
	ProofToken string `json:"proof_token"`
}

type verifyResponse struct {
	Verified bool   `json:"verified"`
	Reason   string `json:"reason,omitempty"`
}

// NewHTTPVerifier creates a verifier that POSTs claims to url.
func NewHTTPVerifier(url string, timeout time.Duration, client *http.Client, log *zap.Logger) *HTTPVerifier {
	if client == nil {
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &HTTPVerifier{
		url:    strings.TrimRight(url, "/"),
		client: client,
		logger: log,
	}
}

// Verify returns true only when the remote service confirms ownership.
func (v *HTTPVerifier) Verify(ctx context.Context, claim domain.SocialClaim) (bool, error) {
	body, err := json.Marshal(verifyRequest{
		Platform:   string(claim.Platform),
		Username:   claim.CanonicalUsername(),
		ProofToken: claim.ProofToken,
	})
	if err != nil {
		return false, fmt.Errorf("marshal verify request: %w", err)
	}

	endpoint := v.url + "/v1/verify/" + string(claim.Platform)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("build verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("verify request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusUnprocessableEntity:
		// The account or proof does not exist on the platform.
		_, _ = io.Copy(io.Discard, resp.Body)
		return false, nil
	case resp.StatusCode != http.StatusOK:
		return false, fmt.Errorf("verify returned %s", resp.Status)
	}

	var result verifyResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&result); err != nil {
		return false, fmt.Errorf("decode verify response: %w", err)
	}

	if !result.Verified {
		v.logger.Debug("Social ownership not confirmed",
			zap.String("platform", string(claim.Platform)),
			zap.String("username", logger.MaskString(claim.Username)),
			zap.String("reason", result.Reason),
		)
	}

	return result.Verified, nil
}

// DenyVerifier rejects every claim. Used when no verification service is configured.
type DenyVerifier struct{}

func (DenyVerifier) Verify(context.Context, domain.SocialClaim) (bool, error) {
	return false, nil
}

var (
	_ port.OwnershipVerifier = (*HTTPVerifier)(nil)
	_ port.OwnershipVerifier = DenyVerifier{}
)
