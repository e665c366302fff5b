package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sethshoultes/invoice-generator/internal/invoice"
)

// IssuerFile is the issuer profile document.
type IssuerFile struct {
	Issuer invoice.Issuer `yaml:"issuer"`
}

// LoadIssuer reads the issuer profile at path. An empty path yields an empty
// issuer so invoices can still be composed without a profile.
func LoadIssuer(path string) (invoice.Issuer, error) {
	if path == "" {
		return invoice.Issuer{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return invoice.Issuer{}, fmt.Errorf("reading issuer profile: %w", err)
	}
	return ParseIssuer(data)
}

// ParseIssuer decodes an issuer profile. Unknown keys are rejected so typos
// do not silently drop a field.
func ParseIssuer(data []byte) (invoice.Issuer, error) {
	var f IssuerFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return invoice.Issuer{}, nil
		}
		return invoice.Issuer{}, fmt.Errorf("parsing issuer profile: %w", err)
	}
	if f.Issuer.PayableTo == "" {
		f.Issuer.PayableTo = f.Issuer.Name
	}
	return f.Issuer, nil
}
