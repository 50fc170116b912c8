package ssl

import (
	"crypto/tls"
	"os"
	"path/filepath"
	"testing"

	"github.com/tech-arch1tect/ziphub/internal/logging"
)

func TestEnsureCertificatesGeneratesOnceAndLoads(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "tls")
	cm := NewCertificateManager(dir, logging.NewNop())

	certPath, keyPath, err := cm.EnsureCertificates()
	if err != nil {
		t.Fatalf("EnsureCertificates: %v", err)
	}
	if _, err := tls.LoadX509KeyPair(certPath, keyPath); err != nil {
		t.Fatalf("generated pair does not load: %v", err)
	}

	info, err := os.Stat(keyPath)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm&0077 != 0 {
		t.Errorf("private key is readable by others: %v", perm)
	}

	before, _ := os.ReadFile(certPath)
	if _, _, err := cm.EnsureCertificates(); err != nil {
		t.Fatal(err)
	}
	after, _ := os.ReadFile(certPath)
	if string(before) != string(after) {
		t.Error("existing certificate was regenerated")
	}
}
