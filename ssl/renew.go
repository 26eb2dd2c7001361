package ssl

import (
	"crypto/x509"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/go-acme/lego/v4/certcrypto"
	"github.com/go-acme/lego/v4/certificate"
	"github.com/go-acme/lego/v4/log"
	"github.com/mattn/go-isatty"
)

const hoursPerDay = 24.0

// Renew re-obtains the certificate for the plan's primary domain when it is
// close enough to expiry, keeping the stored domain set. Returns the saved
// files and whether a renewal actually ran.
func Renew(cfg *IssueConfig) (CertFiles, bool, error) {
	cfg = cfg.withDefaults()

	accountsStorage, err := NewAccountsStorage(cfg)
	if err != nil {
		return CertFiles{}, false, err
	}
	account, client, err := setup(cfg, accountsStorage)
	if err != nil {
		return CertFiles{}, false, err
	}
	if err = setupChallenges(cfg, client); err != nil {
		return CertFiles{}, false, err
	}

	if account.Registration == nil {
		return CertFiles{}, false, fmt.Errorf("account %s is not registered, run provisioning first", account.Email)
	}

	certsStorage := NewCertificatesStorage(cfg)
	domain := cfg.Plan.PrimaryDomain()

	certificates, err := certsStorage.ReadCertificate(domain)
	if err != nil {
		return CertFiles{}, false, fmt.Errorf("error while loading the certificate for domain %s: %w", domain, err)
	}
	cert := certificates[0]

	if !needRenewal(cert, domain, cfg.Days) {
		return CertFiles{}, false, nil
	}

	timeLeft := cert.NotAfter.Sub(time.Now().UTC())
	log.Infof("[%s] acme: Trying renewal with %d hours remaining", domain, int(timeLeft.Hours()))

	// Spread unattended renewals out the way certbot does, but never delay
	// an operator sitting at a terminal.
	if !isatty.IsTerminal(os.Stdout.Fd()) && !cfg.NoRandomSleep {
		const jitter = 8 * time.Minute
		rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
		sleepTime := time.Duration(rnd.Int63n(int64(jitter)))
		log.Infof("renewal: random delay of %s", sleepTime)
		time.Sleep(sleepTime)
	}

	request := certificate.ObtainRequest{
		Domains: mergeDomains(certcrypto.ExtractDomains(cert), cfg.Plan.Domains),
		Bundle:  true,
	}
	certRes, err := client.Certificate.Obtain(request)
	if err != nil {
		return CertFiles{}, false, newIssuanceError(err)
	}

	files, err := certsStorage.SaveResource(certRes)
	if err != nil {
		return CertFiles{}, false, err
	}
	return files, true, nil
}

func needRenewal(x509Cert *x509.Certificate, domain string, days int) bool {
	if x509Cert.IsCA {
		log.Warnf("[%s] certificate bundle starts with a CA certificate", domain)
		return false
	}
	if days >= 0 {
		notAfter := int(time.Until(x509Cert.NotAfter).Hours() / hoursPerDay)
		if notAfter > days {
			log.Printf("[%s] The certificate expires in %d days, renewal threshold is %d days: no renewal.",
				domain, notAfter, days)
			return false
		}
	}
	return true
}

func mergeDomains(prevDomains, nextDomains []string) []string {
	for _, next := range nextDomains {
		var found bool
		for _, prev := range prevDomains {
			if prev == next {
				found = true
				break
			}
		}
		if !found {
			prevDomains = append(prevDomains, next)
		}
	}
	return prevDomains
}
