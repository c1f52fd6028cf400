package auth

import (
	"time"

	"github.com/pkg/errors"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// MFAIssuer nombre que muestran las apps autenticadoras junto a la cuenta
const MFAIssuer = "Frontdesk"

var totpOpts = totp.ValidateOpts{
	Period:    30,
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// GenerateMFASecret genera una llave TOTP nueva para account
func GenerateMFASecret(account string) (*otp.Key, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      MFAIssuer,
		AccountName: account,
		Period:      totpOpts.Period,
		Digits:      totpOpts.Digits,
		Algorithm:   totpOpts.Algorithm,
	})
	return key, errors.Wrap(err, "failed to generate totp secret")
}

// ValidateMFACode valida code contra secret en t, con tolerancia de un
// periodo de desfase de reloj
func ValidateMFACode(code, secret string, t time.Time) bool {
	ok, err := totp.ValidateCustom(code, secret, t.UTC(), totpOpts)
	return err == nil && ok
}

// MFACode obtiene el código de secret en t
func MFACode(secret string, t time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, t.UTC(), totpOpts)
}
