package security

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	totpPeriod = 30
	totpSkew   = 2
	qrSize     = 200
)

type TOTPKey struct {
	Secret    string
	URL       string
	QRCodePNG string // data URL
}

type TOTP struct {
	issuer string
	now    func() time.Time
}

func NewTOTP(issuer string) *TOTP {
	return &TOTP{issuer: issuer, now: time.Now}
}

func (t *TOTP) WithClock(now func() time.Time) *TOTP {
	t.now = now
	return t
}

func (t *TOTP) validateOpts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}

// Generate creates a new shared secret for account and renders its provisioning QR code.
func (t *TOTP) Generate(account string) (TOTPKey, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      t.issuer,
		AccountName: account,
		Period:      totpPeriod,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return TOTPKey{}, fmt.Errorf("generate totp key: %w", err)
	}

	img, err := key.Image(qrSize, qrSize)
	if err != nil {
		return TOTPKey{}, fmt.Errorf("render qr: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return TOTPKey{}, fmt.Errorf("encode qr: %w", err)
	}

	return TOTPKey{
		Secret:    key.Secret(),
		URL:       key.URL(),
		QRCodePNG: "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}

// Validate accepts codes within two periods either side of now.
func (t *TOTP) Validate(code, secret string) bool {
	ok, err := totp.ValidateCustom(code, secret, t.now().UTC(), t.validateOpts())
	return err == nil && ok
}

// Code returns the code for secret at the given time.
func (t *TOTP) Code(secret string, at time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, at.UTC(), t.validateOpts())
}
