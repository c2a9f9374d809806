package sshadmin

import (
	"crypto/ed25519"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func authorizedKeyLine(t *testing.T) (string, ssh.PublicKey) {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	sshPub, err := ssh.NewPublicKey(pub)
	require.NoError(t, err)
	return string(ssh.MarshalAuthorizedKey(sshPub)), sshPub
}

func TestAuthorizedKeys_SingleFile(t *testing.T) {
	baseDir := t.TempDir()
	usersDir := filepath.Join(baseDir, "users")
	require.NoError(t, os.MkdirAll(usersDir, 0750))

	line, want := authorizedKeyLine(t)
	require.NoError(t, os.WriteFile(filepath.Join(usersDir, "alice.key"), []byte(line), 0640))

	d := NewKeyDirectory(baseDir)
	keys, err := d.AuthorizedKeys("alice")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.True(t, ssh.KeysEqual(want, keys[0]))
}

func TestAuthorizedKeys_DirectoryOfKeys(t *testing.T) {
	baseDir := t.TempDir()
	aliceDir := filepath.Join(baseDir, "users", "alice")
	require.NoError(t, os.MkdirAll(aliceDir, 0750))

	line1, _ := authorizedKeyLine(t)
	line2, _ := authorizedKeyLine(t)
	require.NoError(t, os.WriteFile(filepath.Join(aliceDir, "laptop.key"), []byte(line1), 0640))
	require.NoError(t, os.WriteFile(filepath.Join(aliceDir, "phone.key"), []byte(line2), 0640))
	require.NoError(t, os.WriteFile(filepath.Join(aliceDir, "notes.txt"), []byte("ignore me"), 0640))

	d := NewKeyDirectory(baseDir)
	keys, err := d.AuthorizedKeys("alice")
	require.NoError(t, err)
	assert.Len(t, keys, 2, "non-.key files under the user directory must be ignored")
}

func TestAuthorizedKeys_UnknownUserReturnsEmpty(t *testing.T) {
	baseDir := t.TempDir()
	d := NewKeyDirectory(baseDir)

	keys, err := d.AuthorizedKeys("nobody")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestHostKey_GeneratesAndPersists(t *testing.T) {
	baseDir := t.TempDir()
	d := NewKeyDirectory(baseDir)

	signer1, err := d.HostKey()
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(baseDir, "server", "ssh_host_ed25519_key"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	signer2, err := d.HostKey()
	require.NoError(t, err)
	assert.Equal(t, signer1.PublicKey().Marshal(), signer2.PublicKey().Marshal(), "a second call must reuse the persisted key, not regenerate")
}
