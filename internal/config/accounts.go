package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Account is one operator-supplied bot credential, as listed in the
// accounts bootstrap file.
type Account struct {
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	AuthSecret string `yaml:"auth_secret,omitempty"` // short Steam Guard code or long TOTP seed
}

// accountsFile is the top-level shape of the accounts YAML file.
type accountsFile struct {
	Accounts []Account `yaml:"accounts"`
}

// LoadAccounts reads and parses the bot credential list from path.
func LoadAccounts(path string) ([]Account, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read accounts file: %w", err)
	}

	var f accountsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse accounts file: %w", err)
	}

	for i, a := range f.Accounts {
		if a.Username == "" {
			return nil, fmt.Errorf("account at index %d missing username", i)
		}
		if a.Password == "" {
			return nil, fmt.Errorf("account %q missing password", a.Username)
		}
	}

	return f.Accounts, nil
}
