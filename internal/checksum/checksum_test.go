package checksum

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "payload.bin")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParse(t *testing.T) {
	algo, hash, err := Parse("sha256:abcdef")
	require.NoError(t, err)
	assert.Equal(t, AlgorithmSHA256, algo)
	assert.Equal(t, "abcdef", hash)

	_, _, err = Parse("not-valid")
	assert.Error(t, err)

	_, _, err = Parse("md5:abcdef")
	assert.Error(t, err)
}

func TestCalculateAndVerifySHA256(t *testing.T) {
	path := writeTempFile(t, "hello world")

	hash, err := Calculate(path, AlgorithmSHA256)
	require.NoError(t, err)
	assert.Len(t, hash, 64)

	require.NoError(t, Verify(path, AlgorithmSHA256, hash))
	assert.Error(t, Verify(path, AlgorithmSHA256, "deadbeef"))
}

func TestCalculateSHA1(t *testing.T) {
	path := writeTempFile(t, "shasum historical npm package")
	hash, err := Calculate(path, AlgorithmSHA1)
	require.NoError(t, err)
	assert.Len(t, hash, 40)
}

func TestDetectAlgorithm(t *testing.T) {
	assert.Equal(t, AlgorithmSHA1, DetectAlgorithm("0123456789012345678901234567890123456789"))
	assert.Equal(t, AlgorithmSHA256, DetectAlgorithm(generateHex(64)))
	assert.Equal(t, AlgorithmSHA512, DetectAlgorithm(generateHex(128)))
	assert.Equal(t, Algorithm(""), DetectAlgorithm("tooshort"))
}

func generateHex(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = '0'
	}
	return string(b)
}

func TestVerifyCaseInsensitive(t *testing.T) {
	path := writeTempFile(t, "case test")
	hash, err := Calculate(path, AlgorithmSHA256)
	require.NoError(t, err)

	upper := ""
	for _, r := range hash {
		if r >= 'a' && r <= 'f' {
			r = r - 'a' + 'A'
		}
		upper += string(r)
	}
	assert.NoError(t, Verify(path, AlgorithmSHA256, upper))
}
