package sshadmin

import (
	"bufio"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"
)

// KeyDirectory resolves per-user authorized keys and the server host key from
// a directory tree, translating the Python original's SSHKeyDirectory
// (conch_helpers.py) into golang.org/x/crypto/ssh's PublicKeyCallback shape:
// a user's authorized keys live at "<baseDir>/users/<user>.key" and/or every
// "*.key" file under "<baseDir>/users/<user>/", one OpenSSH authorized_keys
// line per key. The host key lives at "<baseDir>/server/ssh_host_ed25519_key",
// generated on first use if absent.
type KeyDirectory struct {
	baseDir string
}

// NewKeyDirectory returns a KeyDirectory rooted at baseDir.
func NewKeyDirectory(baseDir string) *KeyDirectory {
	return &KeyDirectory{baseDir: baseDir}
}

func (d *KeyDirectory) usersDir() string  { return filepath.Join(d.baseDir, "users") }
func (d *KeyDirectory) serverDir() string { return filepath.Join(d.baseDir, "server") }

// AuthorizedKeys returns every public key on file for username.
func (d *KeyDirectory) AuthorizedKeys(username string) ([]ssh.PublicKey, error) {
	var out []ssh.PublicKey

	single := filepath.Join(d.usersDir(), username+".key")
	if keys, err := readAuthorizedKeyFile(single); err == nil {
		out = append(out, keys...)
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	userDir := filepath.Join(d.usersDir(), username)
	entries, err := os.ReadDir(userDir)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".key" {
			continue
		}
		keys, err := readAuthorizedKeyFile(filepath.Join(userDir, entry.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, keys...)
	}
	return out, nil
}

func readAuthorizedKeyFile(path string) ([]ssh.PublicKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var keys []ssh.PublicKey
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		key, _, _, _, err := ssh.ParseAuthorizedKey(line)
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	return keys, scanner.Err()
}

// HostKey loads the server's persistent host key, generating and persisting
// a fresh ed25519 key pair on first run.
func (d *KeyDirectory) HostKey() (ssh.Signer, error) {
	path := filepath.Join(d.serverDir(), "ssh_host_ed25519_key")
	if data, err := os.ReadFile(path); err == nil {
		return ssh.ParsePrivateKey(data)
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	if err := os.MkdirAll(d.serverDir(), 0750); err != nil {
		return nil, err
	}
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("sshadmin: generating host key: %w", err)
	}
	block, err := ssh.MarshalPrivateKey(priv, "prometheus-adlermanager ssh admin host key")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0600); err != nil {
		return nil, err
	}
	_ = pub
	return ssh.NewSignerFromKey(priv)
}
