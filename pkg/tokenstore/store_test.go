package tokenstore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

const testServerURL = "https://fhir.example.com/"

func testToken() *StoredToken {
	return &StoredToken{
		AccessToken:  "test-access-token",
		RefreshToken: "test-refresh-token",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour).Truncate(time.Second),
		Extra:        map[string]any{"patient": "123"},
		ServerURL:    testServerURL,
		IssuerURL:    "https://auth.example.com",
	}
}

// exerciseStore runs the behavior every backend must share.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()

	_, err := store.Load(testServerURL)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Save(testToken()))

	loaded, err := store.Load(testServerURL)
	require.NoError(t, err)
	assert.Equal(t, "test-access-token", loaded.AccessToken)
	assert.Equal(t, "test-refresh-token", loaded.RefreshToken)
	assert.Equal(t, "123", loaded.Extra["patient"])
	assert.True(t, loaded.Expiry.Equal(testToken().Expiry))

	_, err = store.Load("https://other.example.com/")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Delete(testServerURL))
	_, err = store.Load(testServerURL)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, store.Delete(testServerURL), "deleting a missing token succeeds")

	expired := testToken()
	expired.RefreshToken = ""
	expired.Expiry = time.Now().Add(-time.Hour)
	require.NoError(t, store.Save(expired))
	_, err = store.Load(testServerURL)
	assert.ErrorIs(t, err, ErrNotFound, "expired tokens without refresh token are not returned")
}

func TestMemory(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestFile(t *testing.T) {
	store, err := NewFile(filepath.Join(t.TempDir(), "tokens"))
	require.NoError(t, err)
	exerciseStore(t, store)
}

func TestFile_Permissions(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "tokens")
	store, err := NewFile(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())

	require.NoError(t, store.Save(testToken()))
	info, err = os.Stat(filepath.Join(dir, Key(testServerURL)+".json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestFile_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFile(dir)
	require.NoError(t, err)
	require.NoError(t, store.Save(testToken()))

	reopened, err := NewFile(dir)
	require.NoError(t, err)
	loaded, err := reopened.Load(testServerURL)
	require.NoError(t, err)
	assert.Equal(t, "test-access-token", loaded.AccessToken)
}

func TestFile_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFile(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, Key(testServerURL)+".json"), []byte("{"), 0600))

	_, err = store.Load(testServerURL)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestKeyring(t *testing.T) {
	keyring.MockInit()
	exerciseStore(t, NewKeyring("smart-test"))
}

func TestOpen(t *testing.T) {
	store, err := Open(BackendMemory, "")
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, store)

	dir := t.TempDir()
	store, err = Open(BackendFile, dir)
	require.NoError(t, err)
	require.IsType(t, &File{}, store)
	assert.Equal(t, dir, store.(*File).Dir())

	store, err = Open(BackendKeyring, "")
	require.NoError(t, err)
	assert.IsType(t, &Keyring{}, store)

	_, err = Open("vault", "")
	assert.Error(t, err)
}
