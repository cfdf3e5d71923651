package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// LabelFixture is a label request in the manifest entry layout.
type LabelFixture struct {
	ID               string `yaml:"id,omitempty"`
	SenderName       string `yaml:"sender_name"`
	SenderPhone      string `yaml:"sender_phone"`
	RecipientName    string `yaml:"recipient_name,omitempty"`
	RecipientAddress string `yaml:"recipient_address,omitempty"`
	RecipientPhone   string `yaml:"recipient_phone,omitempty"`
	ShippingCode     string `yaml:"shipping_code,omitempty"`
	Profile          string `yaml:"profile,omitempty"`
	Format           string `yaml:"format,omitempty"`
}

// SampleLabels are realistic shipments covering every section combination.
func SampleLabels() []LabelFixture {
	return []LabelFixture{
		{
			ID:               "full",
			SenderName:       "Budi Santoso",
			SenderPhone:      "0811111111",
			RecipientName:    "Siti Rahayu",
			RecipientAddress: "Jl. Merdeka No. 10 Bandung",
			RecipientPhone:   "0822222222",
			ShippingCode:     "JNE1234567890",
		},
		{
			ID:          "sender-only",
			SenderName:  "Toko Sumber Rejeki",
			SenderPhone: "0213456789",
			Profile:     "wide",
		},
		{
			ID:            "long-name",
			SenderName:    "Muhammad Rizky Pratama Wijaya",
			SenderPhone:   "081298765432",
			RecipientName: "Dewi Lestari",
			ShippingCode:  "SPX-99887766",
		},
	}
}

// MarshalManifest encodes labels as a batch manifest.
func MarshalManifest(labels []LabelFixture) ([]byte, error) {
	doc := struct {
		Labels []LabelFixture `yaml:"labels"`
	}{Labels: labels}
	return yaml.Marshal(doc)
}

// WriteManifest writes a batch manifest holding labels and returns its path.
func WriteManifest(t *testing.T, dir string, labels []LabelFixture) string {
	t.Helper()
	data, err := MarshalManifest(labels)
	require.NoError(t, err)

	path := filepath.Join(dir, "manifest.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}
