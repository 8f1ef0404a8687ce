package totp

import (
	"bytes"
	"encoding/base32"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"strings"
	"time"

	"github.com/pquerna/otp"
	pqtotp "github.com/pquerna/otp/totp"
)

const (
	defaultDigits     = 6
	defaultPeriod     = 30
	defaultSkew       = 1
	defaultSecretSize = 20
	defaultQRSize     = 200
)

var (
	// ErrInvalidSecret is returned when a secret is not valid base32.
	ErrInvalidSecret = errors.New("invalid totp secret")
	// ErrInvalidConfig is returned by New for out-of-range settings.
	ErrInvalidConfig = errors.New("invalid totp config")
)

var b32NoPadding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Config describes TOTP parameters. Zero values fall back to 6 digits, 30 second steps, one step
// of skew, 20 byte secrets and 200px QR codes. ExactStep disables skew entirely so only the
// current step is accepted; Skew is then ignored.
type Config struct {
	Issuer     string
	Digits     int
	Period     uint
	Skew       uint
	SecretSize uint
	QRSize     int
	ExactStep  bool
}

// Engine is stateless apart from its configuration and safe for concurrent use.
type Engine struct {
	issuer     string
	digits     otp.Digits
	period     uint
	skew       uint
	secretSize uint
	qrSize     int
}

// New returns an Engine for cfg.
func New(cfg Config) (*Engine, error) {
	if cfg.Digits == 0 {
		cfg.Digits = defaultDigits
	}
	if cfg.Period == 0 {
		cfg.Period = defaultPeriod
	}
	switch {
	case cfg.ExactStep:
		cfg.Skew = 0
	case cfg.Skew == 0:
		cfg.Skew = defaultSkew
	}
	if cfg.SecretSize == 0 {
		cfg.SecretSize = defaultSecretSize
	}
	if cfg.QRSize == 0 {
		cfg.QRSize = defaultQRSize
	}
	if strings.TrimSpace(cfg.Issuer) == "" {
		return nil, fmt.Errorf("%w: issuer is required", ErrInvalidConfig)
	}
	if cfg.Digits != 6 && cfg.Digits != 8 {
		return nil, fmt.Errorf("%w: digits must be 6 or 8", ErrInvalidConfig)
	}
	if cfg.Skew > 3 {
		return nil, fmt.Errorf("%w: skew must be <= 3", ErrInvalidConfig)
	}
	if cfg.SecretSize < 16 {
		return nil, fmt.Errorf("%w: secret size must be >= 16 bytes", ErrInvalidConfig)
	}
	if cfg.QRSize < 64 {
		return nil, fmt.Errorf("%w: qr size must be >= 64px", ErrInvalidConfig)
	}

	return &Engine{
		issuer:     cfg.Issuer,
		digits:     otp.Digits(cfg.Digits),
		period:     cfg.Period,
		skew:       cfg.Skew,
		secretSize: cfg.SecretSize,
		qrSize:     cfg.QRSize,
	}, nil
}

// GenerateSecret returns a fresh crypto-random base32 secret.
func (e *Engine) GenerateSecret() (string, error) {
	key, err := pqtotp.Generate(pqtotp.GenerateOpts{
		Issuer:      e.issuer,
		AccountName: "enrollment",
		Period:      e.period,
		SecretSize:  e.secretSize,
		Digits:      e.digits,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", err
	}
	return key.Secret(), nil
}

// ProvisioningURI builds the otpauth:// URI for secret under account.
func (e *Engine) ProvisioningURI(secret, account string) (string, error) {
	raw, err := decodeSecret(secret)
	if err != nil {
		return "", err
	}
	key, err := pqtotp.Generate(pqtotp.GenerateOpts{
		Issuer:      e.issuer,
		AccountName: account,
		Period:      e.period,
		Secret:      raw,
		Digits:      e.digits,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", err
	}
	return key.URL(), nil
}

// QRImage renders uri as a PNG and returns it as a data URL.
func (e *Engine) QRImage(uri string) (string, error) {
	key, err := otp.NewKeyFromURL(uri)
	if err != nil {
		return "", err
	}
	img, err := key.Image(e.qrSize, e.qrSize)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Verify reports whether code matches secret at now within the configured skew. Codes of the
// wrong length or containing non-digits fail without computing any candidate.
func (e *Engine) Verify(code, secret string, now time.Time) bool {
	code = strings.TrimSpace(code)
	if !e.wellFormed(code) || secret == "" {
		return false
	}
	ok, err := pqtotp.ValidateCustom(code, secret, now.UTC(), e.opts(e.skew))
	if err != nil {
		return false
	}
	return ok
}

// Code computes the code for secret at the given instant.
func (e *Engine) Code(secret string, at time.Time) (string, error) {
	if _, err := decodeSecret(secret); err != nil {
		return "", err
	}
	return pqtotp.GenerateCodeCustom(secret, at.UTC(), e.opts(0))
}

// Period returns the step length.
func (e *Engine) Period() time.Duration {
	return time.Duration(e.period) * time.Second
}

func (e *Engine) opts(skew uint) pqtotp.ValidateOpts {
	return pqtotp.ValidateOpts{
		Period:    e.period,
		Skew:      skew,
		Digits:    e.digits,
		Algorithm: otp.AlgorithmSHA1,
	}
}

func (e *Engine) wellFormed(code string) bool {
	if len(code) != e.digits.Length() {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

func decodeSecret(secret string) ([]byte, error) {
	s := strings.ToUpper(strings.TrimSpace(secret))
	s = strings.TrimRight(s, "=")
	if s == "" {
		return nil, ErrInvalidSecret
	}
	raw, err := b32NoPadding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSecret, err)
	}
	return raw, nil
}
