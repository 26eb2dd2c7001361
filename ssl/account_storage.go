package ssl

import (
	"crypto"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-acme/lego/v4/certcrypto"
	"github.com/go-acme/lego/v4/lego"
	"github.com/go-acme/lego/v4/registration"
)

const (
	baseAccountsRootFolderName = "accounts"
	baseKeysFolderName         = "keys"
	accountFileName            = "account.json"
)

const filePerm os.FileMode = 0o600

// AccountsStorage keeps ACME account state on disk, one folder per CA server
// and account email:
//
//	<AccountPath>/accounts/<server host>/<email>/account.json
//	<AccountPath>/accounts/<server host>/<email>/keys/<email>.key
type AccountsStorage struct {
	userID          string
	rootPath        string
	rootUserPath    string
	keysPath        string
	accountFilePath string
	cfg             *IssueConfig
}

// NewAccountsStorage creates the storage layout for the configured CA server
// and account email.
func NewAccountsStorage(cfg *IssueConfig) (*AccountsStorage, error) {
	if cfg.Email == "" {
		return nil, &ConfigError{Reason: "an account email is required"}
	}
	serverURL, err := url.Parse(cfg.Server)
	if err != nil {
		return nil, err
	}

	rootPath := filepath.Join(cfg.AccountPath, baseAccountsRootFolderName)
	serverPath := strings.NewReplacer(":", "_", "/", string(os.PathSeparator)).Replace(serverURL.Host)
	rootUserPath := filepath.Join(rootPath, serverPath, cfg.Email)

	return &AccountsStorage{
		userID:          cfg.Email,
		rootPath:        rootPath,
		rootUserPath:    rootUserPath,
		keysPath:        filepath.Join(rootUserPath, baseKeysFolderName),
		accountFilePath: filepath.Join(rootUserPath, accountFileName),
		cfg:             cfg,
	}, nil
}

func (s *AccountsStorage) ExistsAccountFilePath() bool {
	_, err := os.Stat(s.accountFilePath)
	return err == nil
}

func (s *AccountsStorage) GetRootPath() string {
	return s.rootPath
}

func (s *AccountsStorage) GetUserID() string {
	return s.userID
}

func (s *AccountsStorage) Save(account *Account) error {
	jsonBytes, err := json.MarshalIndent(account, "", "\t")
	if err != nil {
		return err
	}
	return os.WriteFile(s.accountFilePath, jsonBytes, filePerm)
}

func (s *AccountsStorage) LoadAccount(privateKey crypto.PrivateKey) (*Account, error) {
	fileBytes, err := os.ReadFile(s.accountFilePath)
	if err != nil {
		return nil, fmt.Errorf("could not load file for account %s: %w", s.userID, err)
	}

	var account Account
	if err = json.Unmarshal(fileBytes, &account); err != nil {
		return nil, fmt.Errorf("could not parse file for account %s: %w", s.userID, err)
	}
	account.key = privateKey

	if account.Registration == nil || account.Registration.Body.Status == "" {
		reg, err := tryRecoverRegistration(s.cfg, privateKey)
		if err != nil {
			return nil, fmt.Errorf("could not recover registration for %s: %w", s.userID, err)
		}
		account.Registration = reg
		if err = s.Save(&account); err != nil {
			return nil, fmt.Errorf("could not save account for %s: %w", s.userID, err)
		}
	}

	return &account, nil
}

func (s *AccountsStorage) GetPrivateKey(keyType certcrypto.KeyType) (crypto.PrivateKey, error) {
	accKeyPath := filepath.Join(s.keysPath, s.userID+".key")

	if _, err := os.Stat(accKeyPath); os.IsNotExist(err) {
		if err = createNonExistingFolder(s.keysPath); err != nil {
			return nil, fmt.Errorf("could not create keys directory for account %s: %w", s.userID, err)
		}
		privateKey, err := generatePrivateKey(accKeyPath, keyType)
		if err != nil {
			return nil, fmt.Errorf("could not generate account key for %s: %w", s.userID, err)
		}
		return privateKey, nil
	}

	privateKey, err := loadPrivateKey(accKeyPath)
	if err != nil {
		return nil, fmt.Errorf("could not load account key from %s: %w", accKeyPath, err)
	}
	return privateKey, nil
}

func createNonExistingFolder(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, 0o700)
	} else if err != nil {
		return err
	}
	return nil
}

func generatePrivateKey(file string, keyType certcrypto.KeyType) (crypto.PrivateKey, error) {
	privateKey, err := certcrypto.GeneratePrivateKey(keyType)
	if err != nil {
		return nil, err
	}

	keyOut, err := os.OpenFile(file, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm)
	if err != nil {
		return nil, err
	}
	defer keyOut.Close()

	if err = pem.Encode(keyOut, certcrypto.PEMBlock(privateKey)); err != nil {
		return nil, err
	}
	return privateKey, nil
}

func loadPrivateKey(file string) (crypto.PrivateKey, error) {
	keyBytes, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}

	keyBlock, _ := pem.Decode(keyBytes)
	if keyBlock == nil {
		return nil, errors.New("no PEM block found in account key")
	}

	switch keyBlock.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(keyBlock.Bytes)
	case "EC PRIVATE KEY":
		return x509.ParseECPrivateKey(keyBlock.Bytes)
	}
	return nil, errors.New("unknown private key type")
}

func tryRecoverRegistration(cfg *IssueConfig, privateKey crypto.PrivateKey) (*registration.Resource, error) {
	// Could not load the account but a key exists, look the account up by key.
	config := lego.NewConfig(&Account{key: privateKey})
	config.CADirURL = cfg.Server

	client, err := lego.NewClient(config)
	if err != nil {
		return nil, err
	}
	return client.Registration.ResolveAccountByKey()
}
