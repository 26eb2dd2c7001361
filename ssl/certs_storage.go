package ssl

import (
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-acme/lego/v4/certcrypto"
	"github.com/go-acme/lego/v4/certificate"
	"software.sslmate.com/src/go-pkcs12"
)

const baseCertificatesFolderName = "certificates"

// CertFiles points at the artifacts one issuance produced. The file names
// mirror what the HTTPS proxy config expects (fullchain.pem/privkey.pem).
type CertFiles struct {
	Domain          string
	CertificatePath string
	PrivateKeyPath  string
	IssuerPath      string
	PFXPath         string
	NotAfter        time.Time
}

// CertificatesStorage writes issued certificates under one folder per domain:
//
//	<CertPath>/certificates/<domain>/fullchain.pem
//	<CertPath>/certificates/<domain>/privkey.pem
//	<CertPath>/certificates/<domain>/chain.pem
//	<CertPath>/certificates/<domain>/cert.pfx
//	<CertPath>/certificates/<domain>/resource.json
type CertificatesStorage struct {
	rootPath    string
	pfxPassword string
}

func NewCertificatesStorage(cfg *IssueConfig) *CertificatesStorage {
	return &CertificatesStorage{
		rootPath:    filepath.Join(cfg.CertPath, baseCertificatesFolderName),
		pfxPassword: cfg.PfxPassword,
	}
}

func (s *CertificatesStorage) CreateRootFolder() error {
	return createNonExistingFolder(s.rootPath)
}

// RootPath is the folder holding one subdirectory per domain.
func (s *CertificatesStorage) RootPath() string {
	return s.rootPath
}

func (s *CertificatesStorage) DomainDir(domain string) string {
	return filepath.Join(s.rootPath, sanitizedDomain(domain))
}

func (s *CertificatesStorage) CertificatePath(domain string) string {
	return filepath.Join(s.DomainDir(domain), "fullchain.pem")
}

func (s *CertificatesStorage) PrivateKeyPath(domain string) string {
	return filepath.Join(s.DomainDir(domain), "privkey.pem")
}

// ExistsFor reports whether the certificate file pair is on disk.
func (s *CertificatesStorage) ExistsFor(domain string) bool {
	_, certErr := os.Stat(s.CertificatePath(domain))
	_, keyErr := os.Stat(s.PrivateKeyPath(domain))
	return certErr == nil && keyErr == nil
}

// SaveResource persists every artifact of an issued certificate.
func (s *CertificatesStorage) SaveResource(res *certificate.Resource) (CertFiles, error) {
	domain := res.Domain
	dir := s.DomainDir(domain)
	if err := createNonExistingFolder(dir); err != nil {
		return CertFiles{}, err
	}

	files := CertFiles{
		Domain:          domain,
		CertificatePath: s.CertificatePath(domain),
		PrivateKeyPath:  s.PrivateKeyPath(domain),
		IssuerPath:      filepath.Join(dir, "chain.pem"),
		PFXPath:         filepath.Join(dir, "cert.pfx"),
	}
	if parsed, err := certcrypto.ParsePEMBundle(res.Certificate); err == nil && len(parsed) > 0 {
		files.NotAfter = parsed[0].NotAfter
	}

	if err := os.WriteFile(files.CertificatePath, res.Certificate, filePerm); err != nil {
		return CertFiles{}, fmt.Errorf("unable to save certificate for %s: %w", domain, err)
	}
	if len(res.IssuerCertificate) > 0 {
		if err := os.WriteFile(files.IssuerPath, res.IssuerCertificate, filePerm); err != nil {
			return CertFiles{}, fmt.Errorf("unable to save issuer chain for %s: %w", domain, err)
		}
	}
	if len(res.PrivateKey) > 0 {
		if err := os.WriteFile(files.PrivateKeyPath, res.PrivateKey, filePerm); err != nil {
			return CertFiles{}, fmt.Errorf("unable to save private key for %s: %w", domain, err)
		}
		if err := s.writePFX(files.PFXPath, res); err != nil {
			return CertFiles{}, fmt.Errorf("unable to save pfx for %s: %w", domain, err)
		}
	}

	meta, err := json.MarshalIndent(certificate.Resource{
		Domain:        res.Domain,
		CertURL:       res.CertURL,
		CertStableURL: res.CertStableURL,
	}, "", "\t")
	if err != nil {
		return CertFiles{}, err
	}
	if err = os.WriteFile(filepath.Join(dir, "resource.json"), meta, filePerm); err != nil {
		return CertFiles{}, fmt.Errorf("unable to save resource metadata for %s: %w", domain, err)
	}

	return files, nil
}

// ReadCertificate parses the stored bundle, leaf first.
func (s *CertificatesStorage) ReadCertificate(domain string) ([]*x509.Certificate, error) {
	data, err := os.ReadFile(s.CertificatePath(domain))
	if err != nil {
		return nil, err
	}
	return certcrypto.ParsePEMBundle(data)
}

// ReadPrivateKey loads the stored key bytes.
func (s *CertificatesStorage) ReadPrivateKey(domain string) ([]byte, error) {
	return os.ReadFile(s.PrivateKeyPath(domain))
}

func (s *CertificatesStorage) writePFX(path string, res *certificate.Resource) error {
	certs, err := certcrypto.ParsePEMBundle(res.Certificate)
	if err != nil {
		return err
	}
	key, err := certcrypto.ParsePEMPrivateKey(res.PrivateKey)
	if err != nil {
		return err
	}

	var chain []*x509.Certificate
	if len(certs) > 1 {
		chain = certs[1:]
	}
	data, err := pkcs12.Modern.Encode(key, certs[0], chain, s.pfxPassword)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, filePerm)
}

// sanitizedDomain keeps wildcard names filesystem-safe.
func sanitizedDomain(domain string) string {
	return strings.ReplaceAll(domain, "*", "_")
}
