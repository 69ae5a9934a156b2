package otp

import (
	"fmt"

	"github.com/pquerna/otp/totp"
)

// TOTPProvisioning is what an authenticator-app enrollment needs: the
// shared secret and the otpauth:// URL encoded into the QR code.
type TOTPProvisioning struct {
	Secret string
	URL    string
}

// GenerateTOTPSecret creates a new TOTP secret for authenticator-app
// enrollment.
func GenerateTOTPSecret(issuer, accountName string) (TOTPProvisioning, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: accountName,
	})
	if err != nil {
		return TOTPProvisioning{}, fmt.Errorf("failed to generate TOTP secret: %w", err)
	}
	return TOTPProvisioning{
		Secret: key.Secret(),
		URL:    key.URL(),
	}, nil
}

// ValidateTOTP checks a time-based code against the stored secret.
func ValidateTOTP(code, secret string) bool {
	return totp.Validate(code, secret)
}
