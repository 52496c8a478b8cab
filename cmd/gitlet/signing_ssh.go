package main

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/odvcencio/gitlet/pkg/object"
	"github.com/odvcencio/gitlet/pkg/repo"
	"golang.org/x/crypto/ssh"
)

const commitSignaturePrefix = "sshsig-v1"

var errUnsigned = errors.New("commit is not signed")

func newSSHCommitSigner(keyPath string) (repo.CommitSigner, string, error) {
	resolvedPath, err := resolveSigningKeyPath(keyPath)
	if err != nil {
		return nil, "", err
	}

	raw, err := os.ReadFile(resolvedPath)
	if err != nil {
		return nil, "", fmt.Errorf("read signing key %q: %w", resolvedPath, err)
	}
	signer, err := ssh.ParsePrivateKey(raw)
	if err != nil {
		return nil, "", fmt.Errorf("parse signing key %q: %w", resolvedPath, err)
	}

	pubB64 := base64.StdEncoding.EncodeToString(signer.PublicKey().Marshal())
	commitSigner := func(payload []byte) (string, error) {
		sig, err := signer.Sign(rand.Reader, payload)
		if err != nil {
			return "", err
		}
		sigB64 := base64.StdEncoding.EncodeToString(sig.Blob)
		return fmt.Sprintf("%s:%s:%s:%s", commitSignaturePrefix, sig.Format, pubB64, sigB64), nil
	}
	return commitSigner, resolvedPath, nil
}

// verifySSHCommitSignature checks the commit's signature header against
// its signing payload and returns the signer's key fingerprint.
func verifySSHCommitSignature(c *object.CommitObj) (string, error) {
	raw := strings.TrimSpace(c.Signature())
	if raw == "" {
		return "", errUnsigned
	}
	parts := strings.Split(raw, ":")
	if len(parts) != 4 || parts[0] != commitSignaturePrefix {
		return "", fmt.Errorf("unsupported signature format")
	}
	pubRaw, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return "", fmt.Errorf("decode public key: %w", err)
	}
	pub, err := ssh.ParsePublicKey(pubRaw)
	if err != nil {
		return "", fmt.Errorf("parse public key: %w", err)
	}
	blob, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil {
		return "", fmt.Errorf("decode signature: %w", err)
	}
	sig := &ssh.Signature{Format: parts[1], Blob: blob}
	if err := pub.Verify(object.CommitSigningPayload(c), sig); err != nil {
		return "", fmt.Errorf("bad signature: %w", err)
	}
	return ssh.FingerprintSHA256(pub), nil
}

func resolveSigningKeyPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path != "" {
		return expandUserPath(path)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	candidates := []string{
		filepath.Join(home, ".ssh", "id_ed25519"),
		filepath.Join(home, ".ssh", "id_ecdsa"),
		filepath.Join(home, ".ssh", "id_rsa"),
	}
	for _, candidate := range candidates {
		if st, err := os.Stat(candidate); err == nil && !st.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no default SSH private key found in ~/.ssh (id_ed25519, id_ecdsa, id_rsa)")
}

func expandUserPath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}
	return filepath.Abs(path)
}
