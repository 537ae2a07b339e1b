// File: internal/accounts/accounts.go
package accounts

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/mitchellh/go-homedir"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrInvalidCredential is wrapped by Validate when a required field is missing.
var ErrInvalidCredential = errors.New("invalid credential")

// Credential is one account to log into. It is immutable input for a run.
type Credential struct {
	Name     string
	Panel    string
	Username string
	Password string
}

// Validate reports the first missing required field.
func (c Credential) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Panel) == "" {
		missing = append(missing, "panel")
	}
	if strings.TrimSpace(c.Username) == "" {
		missing = append(missing, "username")
	}
	if c.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidCredential, strings.Join(missing, ", "))
	}
	return nil
}

// Label returns the host part of the panel reference, used in reports.
func (c Credential) Label() string {
	ref := strings.TrimSpace(c.Panel)
	if ref == "" {
		return ""
	}
	if strings.Contains(ref, "://") {
		if u, err := url.Parse(ref); err == nil && u.Host != "" {
			return u.Host
		}
	}
	host, _, _ := strings.Cut(ref, "/")
	return host
}

// Service names the hosting provider behind the panel.
func (c Credential) Service() string {
	if strings.Contains(strings.ToLower(c.Panel), "ct8") {
		return "CT8"
	}
	return "Serv00"
}

// String never includes the password.
func (c Credential) String() string {
	return fmt.Sprintf("%s@%s", c.Name, c.Label())
}

// GoString keeps %#v from leaking the password.
func (c Credential) GoString() string {
	return fmt.Sprintf("accounts.Credential{Name:%q, Panel:%q, Username:%q, Password:\"***\"}", c.Name, c.Panel, c.Username)
}

// record is the on-disk shape. url and host are accepted as aliases of panel.
type record struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Password string `json:"password"`
	Panel    string `json:"panel"`
	URL      string `json:"url"`
	Host     string `json:"host"`
}

// Parse decodes a JSON array of accounts. Entries are not validated here so
// that an incomplete entry still produces a result for its account.
func Parse(data []byte) ([]Credential, error) {
	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode accounts: %w", err)
	}

	creds := make([]Credential, 0, len(records))
	for _, r := range records {
		panel := firstNonEmpty(r.Panel, r.URL, r.Host)
		name := firstNonEmpty(r.Name, r.Username)
		creds = append(creds, Credential{
			Name:     strings.TrimSpace(name),
			Panel:    strings.TrimSpace(panel),
			Username: strings.TrimSpace(r.Username),
			Password: r.Password,
		})
	}
	return creds, nil
}

// Source says where to read the account list from.
type Source struct {
	// File is a path to a JSON file; "~" is expanded.
	File string
	// Env names an environment variable holding the JSON. It wins when set.
	Env string
}

// Load reads and parses the account list. It returns the origin it used.
func Load(src Source) ([]Credential, string, error) {
	if src.Env != "" {
		if raw, ok := os.LookupEnv(src.Env); ok && strings.TrimSpace(raw) != "" {
			creds, err := Parse([]byte(raw))
			if err != nil {
				return nil, "", fmt.Errorf("env %s: %w", src.Env, err)
			}
			return creds, "env:" + src.Env, nil
		}
	}

	if src.File == "" {
		return nil, "", errors.New("no accounts source configured")
	}
	path, err := homedir.Expand(src.File)
	if err != nil {
		return nil, "", fmt.Errorf("expand %s: %w", src.File, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read accounts file: %w", err)
	}
	creds, err := Parse(data)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", path, err)
	}
	return creds, path, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
