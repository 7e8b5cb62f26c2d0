package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SeedAccount is one entry of the optional accounts YAML file. It mirrors the
// fields captured when an account is registered through the API.
type SeedAccount struct {
	AccountID    string `yaml:"account_id"`
	APIToken     string `yaml:"api_token"`
	FriendlyName string `yaml:"friendly_name"`
}

type accountsFile struct {
	Accounts []SeedAccount `yaml:"accounts"`
}

// LoadSeedAccounts parses the accounts YAML file at path. A missing file is
// not an error; a file with malformed or incomplete entries is.
func LoadSeedAccounts(path string) ([]SeedAccount, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read accounts file: %w", err)
	}

	var f accountsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse accounts file: %w", err)
	}

	for i, acc := range f.Accounts {
		if acc.AccountID == "" {
			return nil, fmt.Errorf("accounts[%d]: account_id is required", i)
		}
		if acc.APIToken == "" {
			return nil, fmt.Errorf("accounts[%d] (%s): api_token is required", i, acc.AccountID)
		}
		if acc.FriendlyName == "" {
			f.Accounts[i].FriendlyName = acc.AccountID
		}
	}

	return f.Accounts, nil
}
