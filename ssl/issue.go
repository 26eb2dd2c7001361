package ssl

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/go-acme/lego/v4/certificate"
	"github.com/go-acme/lego/v4/lego"
	"github.com/go-acme/lego/v4/registration"
)

// ErrValidationTimeout marks a challenge validation that exceeded its time
// bound, as opposed to the CA rejecting the order outright.
var ErrValidationTimeout = errors.New("challenge validation timed out")

// IssuanceError wraps a CA-side failure so callers can tell it apart from
// local configuration problems.
type IssuanceError struct {
	Err error
}

func (e *IssuanceError) Error() string {
	return fmt.Sprintf("could not obtain certificate: %v", e.Err)
}

func (e *IssuanceError) Unwrap() error { return e.Err }

// newIssuanceError classifies an obtain failure, surfacing timeouts under
// ErrValidationTimeout.
func newIssuanceError(err error) *IssuanceError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &IssuanceError{Err: fmt.Errorf("%w: %v", ErrValidationTimeout, err)}
	}
	return &IssuanceError{Err: err}
}

// Issue obtains one certificate for the plan's domain set using the embedded
// ACME client, registering the account on first use, and stores the result.
func Issue(cfg *IssueConfig) (CertFiles, error) {
	cfg = cfg.withDefaults()

	accountsStorage, err := NewAccountsStorage(cfg)
	if err != nil {
		return CertFiles{}, err
	}

	account, client, err := setup(cfg, accountsStorage)
	if err != nil {
		return CertFiles{}, err
	}
	if err = setupChallenges(cfg, client); err != nil {
		return CertFiles{}, err
	}

	if account.Registration == nil {
		reg, err := register(client)
		if err != nil {
			return CertFiles{}, fmt.Errorf("could not complete registration: %w", err)
		}
		account.Registration = reg
		if err = accountsStorage.Save(account); err != nil {
			return CertFiles{}, err
		}
	}

	certsStorage := NewCertificatesStorage(cfg)
	if err = certsStorage.CreateRootFolder(); err != nil {
		return CertFiles{}, err
	}

	cert, err := obtainCertificate(cfg, client)
	if err != nil {
		return CertFiles{}, newIssuanceError(err)
	}
	return certsStorage.SaveResource(cert)
}

func register(client *lego.Client) (*registration.Resource, error) {
	return client.Registration.Register(registration.RegisterOptions{TermsOfServiceAgreed: true})
}

func obtainCertificate(cfg *IssueConfig, client *lego.Client) (*certificate.Resource, error) {
	request := certificate.ObtainRequest{
		Domains: cfg.Plan.Domains,
		Bundle:  true,
	}
	return client.Certificate.Obtain(request)
}
