package batch

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/ketutoka/printlabel/internal/label"
	"gopkg.in/yaml.v3"
)

// ErrEmptyManifest is returned for manifests without labels.
var ErrEmptyManifest = errors.New("manifest has no labels")

// Manifest lists the labels of one batch.
type Manifest struct {
	Defaults Defaults `yaml:"defaults" json:"defaults"`
	Labels   []Entry  `yaml:"labels" json:"labels"`
}

// Defaults apply to entries that leave the field empty.
type Defaults struct {
	Profile string `yaml:"profile" json:"profile"`
	Format  string `yaml:"format" json:"format"`
}

// Entry is one label in a manifest.
type Entry struct {
	ID               string `yaml:"id" json:"id"`
	SenderName       string `yaml:"sender_name" json:"sender_name"`
	SenderPhone      string `yaml:"sender_phone" json:"sender_phone"`
	RecipientName    string `yaml:"recipient_name" json:"recipient_name"`
	RecipientAddress string `yaml:"recipient_address" json:"recipient_address"`
	RecipientPhone   string `yaml:"recipient_phone" json:"recipient_phone"`
	ShippingCode     string `yaml:"shipping_code" json:"shipping_code"`
	Profile          string `yaml:"profile" json:"profile"`
	Format           string `yaml:"format" json:"format"`
}

// LoadManifest reads a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	f, err := os.Open(path) //nolint:gosec // G304: manifest path comes from the user
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer func() { _ = f.Close() }()

	m, err := ParseManifest(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// ParseManifest decodes a YAML manifest. Unknown keys are rejected so that
// misspelled fields do not silently drop data.
func ParseManifest(r io.Reader) (*Manifest, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyManifest
		}
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if len(m.Labels) == 0 {
		return nil, ErrEmptyManifest
	}
	return &m, nil
}

// Requests converts the entries into label requests, applying defaults.
// Entries without an id get their 1-based position.
func (m *Manifest) Requests() []label.Request {
	out := make([]label.Request, len(m.Labels))
	for i, e := range m.Labels {
		id := e.ID
		if id == "" {
			id = strconv.Itoa(i + 1)
		}
		profile := e.Profile
		if profile == "" {
			profile = m.Defaults.Profile
		}
		format := e.Format
		if format == "" {
			format = m.Defaults.Format
		}
		out[i] = label.Request{
			ID:               id,
			SenderName:       e.SenderName,
			SenderPhone:      e.SenderPhone,
			RecipientName:    e.RecipientName,
			RecipientAddress: e.RecipientAddress,
			RecipientPhone:   e.RecipientPhone,
			ShippingCode:     e.ShippingCode,
			PaperProfile:     profile,
			Format:           format,
		}
	}
	return out
}
