// Package totpsvc implements time-based one-time password verification for
// two-factor login.
package totpsvc

import (
	"github.com/pquerna/otp/totp"

	"github.com/trezcool/shule/core"
)

type service struct {
	issuer string
}

var _ core.TwoFactorService = (*service)(nil)

func NewService() core.TwoFactorService {
	return &service{issuer: core.Conf.AppName}
}

func (svc *service) GenerateSecret(accountLabel string) (string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      svc.issuer,
		AccountName: accountLabel,
	})
	if err != nil {
		return "", err
	}
	return key.Secret(), nil
}

func (svc *service) Verify(secret, code string) bool {
	return totp.Validate(code, secret)
}

func (svc *service) ProvisioningURI(secret, accountLabel string) string {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      svc.issuer,
		AccountName: accountLabel,
		Secret:      []byte(secret),
	})
	if err != nil {
		return ""
	}
	return key.URL()
}
