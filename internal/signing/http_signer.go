package signing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/addonhub/addonhub/internal/config"
	"github.com/addonhub/addonhub/internal/models"
)

// HTTPSigner requests a certificate serial from the external signing
// service over HTTP.
type HTTPSigner struct {
	endpoint   string
	apiKey     string
	maxRetries int
	client     *http.Client
	logger     zerolog.Logger
}

// NewHTTPSigner creates an HTTPSigner from signing configuration
func NewHTTPSigner(cfg *config.Signing, logger zerolog.Logger) (*HTTPSigner, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("signing endpoint is required")
	}

	return &HTTPSigner{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		maxRetries: cfg.MaxRetries,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}, nil
}

type signRequest struct {
	FileID   uint   `json:"file_id"`
	Filename string `json:"filename"`
	Hash     string `json:"hash"`
}

type signResponse struct {
	CertSerialNum string `json:"cert_serial_num"`
}

// permanentError marks a response that a retry cannot fix.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// Sign submits the file to the signing service and returns the
// certificate serial it issued.
func (s *HTTPSigner) Sign(ctx context.Context, file *models.File) (string, error) {
	payload, err := json.Marshal(signRequest{
		FileID:   file.ID,
		Filename: file.Filename,
		Hash:     file.Hash,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal signing request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Second * time.Duration(attempt)):
			}
			s.logger.Warn().
				Int("attempt", attempt).
				Uint("file_id", file.ID).
				Msg("Retrying signing request")
		}

		serial, err := s.doSign(ctx, payload)
		if err == nil {
			return serial, nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return "", fmt.Errorf("signing rejected: %w", perm.err)
		}
		lastErr = err
	}

	return "", fmt.Errorf("signing failed after %d attempts: %w", s.maxRetries+1, lastErr)
}

func (s *HTTPSigner) doSign(ctx context.Context, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build signing request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("signing request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read signing response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := fmt.Errorf("signing service returned status %d: %s", resp.StatusCode, string(body))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return "", &permanentError{err: statusErr}
		}
		return "", statusErr
	}

	var out signResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("failed to decode signing response: %w", err)
	}
	if out.CertSerialNum == "" {
		return "", fmt.Errorf("signing service returned an empty certificate serial")
	}

	return out.CertSerialNum, nil
}
