// Package ssl provides the self-signed certificate used when the server is
// started with TLS enabled.
package ssl

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/tech-arch1tect/ziphub/internal/logging"

	"go.uber.org/zap"
)

const (
	CertFileName = "server.crt"
	KeyFileName  = "server.key"

	validity = 365 * 24 * time.Hour
)

type CertificateManager struct {
	certDir string
	logger  *logging.Logger
	now     func() time.Time
}

func NewCertificateManager(certDir string, logger *logging.Logger) *CertificateManager {
	return &CertificateManager{
		certDir: certDir,
		logger:  logger.With(zap.String("component", "tls")),
		now:     time.Now,
	}
}

// EnsureCertificates returns the certificate and key paths, generating a
// fresh pair when either file is missing.
func (cm *CertificateManager) EnsureCertificates() (string, string, error) {
	certPath := filepath.Join(cm.certDir, CertFileName)
	keyPath := filepath.Join(cm.certDir, KeyFileName)

	exists, err := bothExist(certPath, keyPath)
	if err != nil {
		return "", "", err
	}
	if exists {
		cm.logger.Debug("using existing TLS certificate", zap.String("cert_path", certPath))
		return certPath, keyPath, nil
	}

	if err := cm.generate(certPath, keyPath); err != nil {
		return "", "", fmt.Errorf("failed to generate self-signed certificate: %w", err)
	}
	return certPath, keyPath, nil
}

func bothExist(paths ...string) (bool, error) {
	for _, p := range paths {
		_, err := os.Stat(p)
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("failed to stat %s: %w", p, err)
		}
	}
	return true, nil
}

func (cm *CertificateManager) generate(certPath, keyPath string) error {
	if err := os.MkdirAll(cm.certDir, 0700); err != nil {
		return fmt.Errorf("failed to create certificate directory: %w", err)
	}

	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("failed to generate private key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return fmt.Errorf("failed to generate serial number: %w", err)
	}

	dnsNames := []string{"localhost"}
	if host, err := os.Hostname(); err == nil && host != "" && host != "localhost" {
		dnsNames = append(dnsNames, host)
	}

	notBefore := cm.now()
	template := x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{Organization: []string{"ziphub"}, CommonName: "localhost"},
		NotBefore:    notBefore,
		NotAfter:     notBefore.Add(validity),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IPAddresses:  []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
		DNSNames:     dnsNames,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return fmt.Errorf("failed to create certificate: %w", err)
	}

	keyDER, err := x509.MarshalPKCS8PrivateKey(privateKey)
	if err != nil {
		return fmt.Errorf("failed to marshal private key: %w", err)
	}

	if err := writePEM(keyPath, "PRIVATE KEY", keyDER, 0600); err != nil {
		return err
	}
	if err := writePEM(certPath, "CERTIFICATE", certDER, 0644); err != nil {
		return err
	}

	cm.logger.Info("generated self-signed TLS certificate",
		zap.String("cert_path", certPath),
		zap.Strings("dns_names", dnsNames),
		zap.Time("valid_until", template.NotAfter),
	)
	return nil
}

func writePEM(path, blockType string, der []byte, perm os.FileMode) error {
	data := pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der})
	if err := os.WriteFile(path, data, perm); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}
