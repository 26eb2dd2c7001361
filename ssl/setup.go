package ssl

import (
	"crypto"
	"fmt"
	"strings"
	"time"

	"github.com/go-acme/lego/v4/certcrypto"
	"github.com/go-acme/lego/v4/challenge/dns01"
	"github.com/go-acme/lego/v4/lego"
	"github.com/go-acme/lego/v4/providers/http/webroot"
	"github.com/go-acme/lego/v4/registration"
)

// IssueConfig parameterizes one embedded issuance or renewal run.
type IssueConfig struct {
	// AccountPath is the root folder for ACME account state.
	AccountPath string
	// CertPath is the root folder certificates are stored under.
	CertPath string
	// Server is the ACME directory URL.
	Server string
	Email  string
	// KeyType for account and certificate keys (RSA2048..RSA8192, EC256, EC384).
	KeyType     string
	CertTimeout int
	HTTPTimeout int
	PfxPassword string
	// Days below which a renewal actually runs; negative disables the check.
	Days int
	// NoRandomSleep skips the non-interactive renewal jitter.
	NoRandomSleep bool

	Plan *ChallengePlan
}

func (c *IssueConfig) withDefaults() *IssueConfig {
	out := *c
	if out.Server == "" {
		out.Server = LEDirectoryProduction
	}
	if out.KeyType == "" {
		out.KeyType = "RSA4096"
	}
	if out.PfxPassword == "" {
		out.PfxPassword = "changeit"
	}
	return &out
}

// Account implements lego's registration.User backed by the account storage.
type Account struct {
	Email        string                 `json:"email"`
	Registration *registration.Resource `json:"registration"`

	key crypto.PrivateKey
}

func (a *Account) GetEmail() string                        { return a.Email }
func (a *Account) GetRegistration() *registration.Resource { return a.Registration }
func (a *Account) GetPrivateKey() crypto.PrivateKey        { return a.key }

func setup(cfg *IssueConfig, accountsStorage *AccountsStorage) (*Account, *lego.Client, error) {
	keyType, err := getKeyType(cfg.KeyType)
	if err != nil {
		return nil, nil, err
	}
	privateKey, err := accountsStorage.GetPrivateKey(keyType)
	if err != nil {
		return nil, nil, err
	}

	var account *Account
	if accountsStorage.ExistsAccountFilePath() {
		account, err = accountsStorage.LoadAccount(privateKey)
		if err != nil {
			return nil, nil, err
		}
	} else {
		account = &Account{Email: accountsStorage.GetUserID(), key: privateKey}
	}

	client, err := newClient(cfg, account, keyType)
	if err != nil {
		return nil, nil, err
	}
	return account, client, nil
}

func newClient(cfg *IssueConfig, acc registration.User, keyType certcrypto.KeyType) (*lego.Client, error) {
	config := lego.NewConfig(acc)
	config.CADirURL = cfg.Server
	config.Certificate = lego.CertificateConfig{
		KeyType: keyType,
		Timeout: time.Duration(cfg.CertTimeout) * time.Second,
	}
	if cfg.HTTPTimeout != 0 {
		config.HTTPClient.Timeout = time.Duration(cfg.HTTPTimeout) * time.Second
	}

	client, err := lego.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("could not create acme client: %w", err)
	}
	return client, nil
}

// setupChallenges wires the plan's validation method into the client.
func setupChallenges(cfg *IssueConfig, client *lego.Client) error {
	plan := cfg.Plan
	switch plan.Type {
	case HTTP:
		provider, err := webroot.NewHTTPProvider(plan.Webroot)
		if err != nil {
			return err
		}
		return client.Challenge.SetHTTP01Provider(provider)
	case DNS:
		// The solver sleeps a bounded settle delay after record creation,
		// propagation polling stays off.
		return client.Challenge.SetDNS01Provider(plan.Solver,
			dns01.DisableCompletePropagationRequirement())
	default:
		return &ConfigError{Reason: fmt.Sprintf("unknown challenge type %q", plan.Type)}
	}
}

func getKeyType(keyType string) (certcrypto.KeyType, error) {
	switch strings.ToUpper(keyType) {
	case "RSA2048":
		return certcrypto.RSA2048, nil
	case "RSA3072":
		return certcrypto.RSA3072, nil
	case "RSA4096":
		return certcrypto.RSA4096, nil
	case "RSA8192":
		return certcrypto.RSA8192, nil
	case "EC256":
		return certcrypto.EC256, nil
	case "EC384":
		return certcrypto.EC384, nil
	}
	return "", fmt.Errorf("unsupported KeyType: %s", keyType)
}
