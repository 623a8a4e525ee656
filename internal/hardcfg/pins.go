package hardcfg

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sebkrahmer/harddns-go/internal/tlsutil"
)

// loadPins walks dir for *.pem files and returns a PinStore built from
// every certificate found, the Go equivalent of init.cc's pem_walk/
// load_certificates pair which feeds ssl_box::add_pinned(). A missing
// directory is not an error - pinning is optional.
func loadPins(dir string) (*tlsutil.PinStore, error) {
	var certs []*x509.Certificate

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return tlsutil.NewPinStore(nil), nil
	}

	walkErr := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(path) != ".pem" {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("%s: reading %s: %w", me, path, err)
		}

		for len(data) > 0 {
			var block *pem.Block
			block, data = pem.Decode(data)
			if block == nil {
				break
			}
			if block.Type != "CERTIFICATE" {
				continue
			}
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return fmt.Errorf("%s: parsing %s: %w", me, path, err)
			}
			certs = append(certs, cert)
		}
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	return tlsutil.NewPinStore(certs), nil
}
