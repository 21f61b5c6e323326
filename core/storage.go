package core

import "io"

// FileStorage accepts an upload stream and returns a retrievable reference.
// Implementations decide where bytes actually live (local disk, object store).
type FileStorage interface {
	Save(r io.Reader, filename string) (ref string, err error)
	Open(ref string) (io.ReadCloser, error)
	Delete(ref string) error
}

// TwoFactorService generates shared secrets and verifies time-based one-time
// codes against them.
type TwoFactorService interface {
	GenerateSecret(accountLabel string) (secret string, err error)
	Verify(secret, code string) bool
	ProvisioningURI(secret, accountLabel string) string
}
