// Package credentials keeps the login directory: a YAML file of users keyed
// by e-mail, mirrored from the users record type, and the signed session
// tokens issued against it.
package credentials

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnknownUser        = errors.New("unknown user")
)

// Credential is one login entry. Password holds a bcrypt hash.
type Credential struct {
	ID           int64    `yaml:"id"`
	Email        string   `yaml:"email"`
	FirstName    string   `yaml:"first_name"`
	LastName     string   `yaml:"last_name"`
	Password     string   `yaml:"password"`
	Roles        []string `yaml:"roles"`
	TokenVersion int      `yaml:"token_version"`
}

// Name returns "first last".
func (c Credential) Name() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

type fileFormat struct {
	Usernames map[string]Credential `yaml:"usernames"`
}

// Directory is the credential file. Every change is written through to disk.
type Directory struct {
	path string

	mu    sync.RWMutex
	users map[string]Credential
}

// Open loads the directory at path. A missing file is an empty directory.
func Open(path string) (*Directory, error) {
	d := &Directory{path: path, users: make(map[string]Credential)}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return d, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read credentials %s: %w", path, err)
	}

	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse credentials %s: %w", path, err)
	}
	for email, c := range f.Usernames {
		key := normalize(email)
		c.Email = key
		d.users[key] = c
	}
	return d, nil
}

// Lookup returns the entry for email.
func (d *Directory) Lookup(email string) (Credential, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.users[normalize(email)]
	return c, ok
}

// All returns every entry sorted by e-mail.
func (d *Directory) All() []Credential {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Credential, 0, len(d.users))
	for _, c := range d.users {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out
}

// Len returns the number of entries.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.users)
}

// Authenticate checks a password against the stored hash.
func (d *Directory) Authenticate(email, password string) (Credential, error) {
	c, ok := d.Lookup(email)
	if !ok {
		// Unknown addresses take as long as a wrong password.
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
		return Credential{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(c.Password), []byte(password)); err != nil {
		return Credential{}, ErrInvalidCredentials
	}
	return c, nil
}

// dummyHash is a well-formed cost-10 bcrypt hash that matches no password in use.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// Put stores c, replacing the entry with the same ID or e-mail. An e-mail
// change moves the entry and bumps its token version so older sessions stop
// verifying.
func (d *Directory) Put(c Credential) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	c.Email = normalize(c.Email)
	if c.Email == "" {
		return fmt.Errorf("credential without e-mail")
	}

	prev, found := d.users[c.Email]
	if !found && c.ID != 0 {
		for email, other := range d.users {
			if other.ID == c.ID {
				prev, found = other, true
				delete(d.users, email)
				c.TokenVersion = other.TokenVersion + 1
				break
			}
		}
	} else if found {
		c.TokenVersion = prev.TokenVersion
	}
	if found && c.Password == "" {
		c.Password = prev.Password
	}

	d.users[c.Email] = c
	return d.save()
}

// Remove deletes the entries with the given ids. Unknown ids are ignored.
func (d *Directory) Remove(ids ...int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	drop := make(map[int64]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	changed := false
	for email, c := range d.users {
		if drop[c.ID] {
			delete(d.users, email)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return d.save()
}

// Revoke bumps the token version of email, ending its sessions.
func (d *Directory) Revoke(email string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := normalize(email)
	c, ok := d.users[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownUser, email)
	}
	c.TokenVersion++
	d.users[key] = c
	return d.save()
}

// save writes the file atomically. Callers hold mu.
func (d *Directory) save() error {
	data, err := yaml.Marshal(fileFormat{Usernames: d.users})
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}

	dir := filepath.Dir(d.path)
	tmp, err := os.CreateTemp(dir, ".credentials-*.yaml")
	if err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := os.Rename(tmp.Name(), d.path); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
