package support

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cucumber/godog"
	"github.com/ketutoka/printlabel/internal/barcode"
	"github.com/ketutoka/printlabel/internal/sink"
	"github.com/ketutoka/printlabel/internal/testutil"
)

// RegisterLabelSteps registers manifest, file and bitmap steps.
func (testCtx *TestContext) RegisterLabelSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a manifest with the sample labels$`, testCtx.aManifestWithTheSampleLabels)
	sc.Step(`^a manifest with the sample labels and a broken entry$`, testCtx.aManifestWithABrokenEntry)
	sc.Step(`^a config file "([^"]*)" with:$`, testCtx.aConfigFileWith)
	sc.Step(`^the output directory should contain (\d+) files?$`, testCtx.theOutputDirectoryShouldContain)
	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should not exist$`, testCtx.theFileShouldNotExist)
	sc.Step(`^the file "([^"]*)" should contain "([^"]*)"$`, testCtx.theFileShouldContain)
	sc.Step(`^the label "([^"]*)" should be (\d+) dots wide$`, testCtx.theLabelShouldBeDotsWide)
	sc.Step(`^the label "([^"]*)" should be black and white$`, testCtx.theLabelShouldBeBlackAndWhite)
	sc.Step(`^the label "([^"]*)" should carry the code "([^"]*)"$`, testCtx.theLabelShouldCarryTheCode)
}

func (testCtx *TestContext) writeManifest(labels []testutil.LabelFixture) error {
	data, err := testutil.MarshalManifest(labels)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	path := filepath.Join(testCtx.TempDir, "manifest.yaml")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	testCtx.Files["manifest"] = path
	return nil
}

func (testCtx *TestContext) aManifestWithTheSampleLabels() error {
	return testCtx.writeManifest(testutil.SampleLabels())
}

func (testCtx *TestContext) aManifestWithABrokenEntry() error {
	labels := append(testutil.SampleLabels(), testutil.LabelFixture{ID: "broken", SenderPhone: "0800"})
	return testCtx.writeManifest(labels)
}

func (testCtx *TestContext) aConfigFileWith(name string, doc *godog.DocString) error {
	path := testCtx.resolvePath(name)
	content := testCtx.substituteVariables(doc.Content)
	if err := testutil.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	testCtx.Files[strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))] = path
	return nil
}

func (testCtx *TestContext) theOutputDirectoryShouldContain(n int) error {
	entries, err := os.ReadDir(testCtx.OutputDir)
	if err != nil {
		return fmt.Errorf("failed to read output directory: %w", err)
	}
	count := 0
	for _, e := range entries {
		if !e.IsDir() {
			count++
		}
	}
	if count != n {
		return fmt.Errorf("output directory holds %d files, expected %d", count, n)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldExist(name string) error {
	if path := testCtx.resolvePath(name); !testutil.FileExists(path) {
		return fmt.Errorf("file %s does not exist", path)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldNotExist(name string) error {
	if path := testCtx.resolvePath(name); testutil.FileExists(path) {
		return fmt.Errorf("file %s exists", path)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldContain(name, expected string) error {
	path := testCtx.resolvePath(name)
	data, err := os.ReadFile(path) //nolint:gosec // G304: scenario file
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if !strings.Contains(string(data), expected) {
		return fmt.Errorf("file %s does not contain %q", path, expected)
	}
	return nil
}

// labelPath resolves a label name against the output directory.
func (testCtx *TestContext) labelPath(name string) string {
	name = testCtx.substituteVariables(name)
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(testCtx.OutputDir, name)
}

func (testCtx *TestContext) theLabelShouldBeDotsWide(name string, width int) error {
	img, err := sink.Load(testCtx.labelPath(name))
	if err != nil {
		return err
	}
	if got := img.Bounds().Dx(); got != width {
		return fmt.Errorf("label %s is %d dots wide, expected %d", name, got, width)
	}
	return nil
}

func (testCtx *TestContext) theLabelShouldBeBlackAndWhite(name string) error {
	img, err := sink.Load(testCtx.labelPath(name))
	if err != nil {
		return err
	}
	if !testutil.IsBinary(img) {
		return fmt.Errorf("label %s has grey pixels", name)
	}
	if testutil.InkRatio(img) == 0 {
		return fmt.Errorf("label %s is blank", name)
	}
	return nil
}

func (testCtx *TestContext) theLabelShouldCarryTheCode(name, code string) error {
	img, err := sink.Load(testCtx.labelPath(name))
	if err != nil {
		return err
	}
	res, err := barcode.NewDecoder().Decode(context.Background(), img, barcode.Options{TryHarder: true})
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", name, err)
	}
	if res.Value != code {
		return fmt.Errorf("label %s carries %q, expected %q", name, res.Value, code)
	}
	return nil
}
