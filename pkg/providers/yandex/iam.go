package yandex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const IAMTokenURL = "https://iam.api.cloud.yandex.net/iam/v1/tokens"

// ServiceAccountKey is an authorized key document issued for a service account.
type ServiceAccountKey struct {
	ID               string `json:"id"`
	ServiceAccountID string `json:"service_account_id"`
	PrivateKey       string `json:"private_key"`
}

func ParseServiceAccountKey(raw []byte) (*ServiceAccountKey, error) {
	var key ServiceAccountKey
	if err := json.Unmarshal(raw, &key); err != nil {
		return nil, fmt.Errorf("failed to parse service account key: %w", err)
	}
	if key.ID == "" || key.ServiceAccountID == "" || key.PrivateKey == "" {
		return nil, fmt.Errorf("service account key must define id, service_account_id and private_key")
	}
	return &key, nil
}

func LoadServiceAccountKey(path string) (*ServiceAccountKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read service account key %s: %w", path, err)
	}
	return ParseServiceAccountKey(raw)
}

// SignedJWT builds the PS256 assertion exchanged for an IAM token.
func (k *ServiceAccountKey) SignedJWT(audience string, now time.Time) (string, error) {
	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(k.PrivateKey))
	if err != nil {
		return "", fmt.Errorf("failed to parse private key: %w", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodPS256, jwt.RegisteredClaims{
		Issuer:    k.ServiceAccountID,
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	})
	token.Header["kid"] = k.ID

	return token.SignedString(privateKey)
}

type iamTokenResponse struct {
	IAMToken  string    `json:"iamToken"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type tokenError struct {
	status int
	body   string
}

func (e *tokenError) Error() string {
	return fmt.Sprintf("iam token exchange failed with status %d: %s", e.status, e.body)
}

func exchangeToken(ctx context.Context, client *http.Client, tokenURL, assertion string) (iamTokenResponse, error) {
	payload, err := json.Marshal(map[string]string{"jwt": assertion})
	if err != nil {
		return iamTokenResponse{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, bytes.NewReader(payload))
	if err != nil {
		return iamTokenResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return iamTokenResponse{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return iamTokenResponse{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return iamTokenResponse{}, &tokenError{status: resp.StatusCode, body: string(body)}
	}

	var out iamTokenResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return iamTokenResponse{}, fmt.Errorf("failed to decode iam token response: %w", err)
	}
	return out, nil
}
