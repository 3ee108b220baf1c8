package captcha

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"enoriel/autos/internal/config"

	jwt "github.com/golang-jwt/jwt/v5"
)

const humanIssuer = "autos-captcha"

// Client identifies the browser a human token is bound to.
type Client struct {
	IP          string
	Fingerprint string
	Session     string
}

// ITurnstileVerifier checks Cloudflare Turnstile responses and issues short-lived
// human tokens so a visitor solves the challenge once per session.
type ITurnstileVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) (bool, error)
	GenerateHumanToken(client Client, ttl time.Duration) (string, error)
	ValidateHumanToken(tokenString string, client Client) bool
}

// siteVerifyResponse is the body returned by the siteverify endpoint.
type siteVerifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
	Hostname   string   `json:"hostname"`
	Action     string   `json:"action"`
}

type turnstileVerifier struct {
	secretKey  string
	verifyURL  string
	signingKey []byte
	httpClient *http.Client
}

func NewTurnstileVerifier(cfg *config.Config) ITurnstileVerifier {
	return &turnstileVerifier{
		secretKey:  cfg.CloudflareTurnstileSecretKey,
		verifyURL:  cfg.CloudflareSiteVerifyURL,
		signingKey: []byte(cfg.JwtSecret),
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// Verify calls siteverify. Without a secret key every token passes, which keeps
// local development usable.
func (v *turnstileVerifier) Verify(ctx context.Context, token, remoteIP string) (bool, error) {
	if v.secretKey == "" {
		log.Println("WARN: Turnstile secret key not configured. Skipping verification.")
		return true, nil
	}
	if token == "" {
		return false, nil
	}

	form := map[string]string{
		"secret":   v.secretKey,
		"response": token,
	}
	if remoteIP != "" {
		form["remoteip"] = remoteIP
	}
	payload, err := json.Marshal(form)
	if err != nil {
		return false, fmt.Errorf("failed to encode turnstile request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, bytes.NewReader(payload))
	if err != nil {
		return false, fmt.Errorf("failed to create turnstile request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		log.Printf("Error calling Turnstile siteverify: %v", err)
		return false, fmt.Errorf("failed to contact turnstile service")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("failed to read turnstile response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		log.Printf("Turnstile siteverify returned %d: %s", resp.StatusCode, string(body))
		return false, fmt.Errorf("turnstile verification failed with status %d", resp.StatusCode)
	}

	var out siteVerifyResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return false, fmt.Errorf("failed to parse turnstile response: %w", err)
	}
	if !out.Success {
		log.Printf("Turnstile verification unsuccessful: %v", out.ErrorCodes)
	}
	return out.Success, nil
}

// HumanTokenClaims is the payload of the X-C-T header.
type HumanTokenClaims struct {
	IP          string `json:"ip"`
	Fingerprint string `json:"bfp"`
	Session     string `json:"spa"`
	jwt.RegisteredClaims
}

func (v *turnstileVerifier) GenerateHumanToken(client Client, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &HumanTokenClaims{
		IP:          client.IP,
		Fingerprint: client.Fingerprint,
		Session:     client.Session,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    humanIssuer,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign human token: %w", err)
	}
	return signed, nil
}

// ValidateHumanToken accepts a token only when it was issued to the same client.
func (v *turnstileVerifier) ValidateHumanToken(tokenString string, client Client) bool {
	if tokenString == "" {
		return false
	}
	claims := &HumanTokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.signingKey, nil
	}, jwt.WithIssuer(humanIssuer))
	if err != nil || !token.Valid {
		log.Printf("Invalid X-C-T token: %v", err)
		return false
	}

	if claims.IP != client.IP || claims.Fingerprint != client.Fingerprint || claims.Session != client.Session {
		log.Printf("X-C-T token mismatch: IP(%s vs %s) BFP(%s vs %s) SPA(%s vs %s)",
			claims.IP, client.IP, claims.Fingerprint, client.Fingerprint, claims.Session, client.Session)
		return false
	}
	return true
}
