package support

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/hudscan/internal/testutil"
	"github.com/cucumber/godog"
	"github.com/disintegration/imaging"
)

// RegisterCLISteps registers the workspace and command steps.
func (testCtx *TestContext) RegisterCLISteps(sc *godog.ScenarioContext) {
	sc.Step(`^a frame directory with (\d+) frames?$`, testCtx.aFrameDirectoryWithFrames)
	sc.Step(`^an empty frame directory$`, testCtx.anEmptyFrameDirectory)
	sc.Step(`^a fixture region catalog$`, testCtx.aFixtureRegionCatalog)
	sc.Step(`^the recognizer reads "([^"]*)" as ([a-z_]+)$`, testCtx.theRecognizerReads)
	sc.Step(`^a file "([^"]*)" containing "([^"]*)"$`, testCtx.aFileContaining)
	sc.Step(`^a corrupt frame "([^"]*)"$`, testCtx.aCorruptFrame)

	sc.Step(`^I run "hudscan ([^"]*)"$`, testCtx.iRunHudscan)

	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail with "([^"]*)"$`, testCtx.theCommandShouldFailWith)
	sc.Step(`^stdout should have (\d+) lines?$`, testCtx.stdoutShouldHaveLines)
	sc.Step(`^stdout line (\d+) should be "([^"]*)"$`, testCtx.stdoutLineShouldBe)
	sc.Step(`^stdout should contain "([^"]*)"$`, testCtx.stdoutShouldContain)
	sc.Step(`^stderr should contain "([^"]*)"$`, testCtx.stderrShouldContain)
	sc.Step(`^the file "([^"]*)" should contain "([^"]*)"$`, testCtx.theFileShouldContain)
	sc.Step(`^the file "([^"]*)" should contain '([^']*)'$`, testCtx.theFileShouldContain)
	sc.Step(`^the file "([^"]*)" should not exist$`, testCtx.theFileShouldNotExist)
}

func (testCtx *TestContext) aFrameDirectoryWithFrames(n int) error {
	if err := os.MkdirAll(testCtx.FramesDir, 0o755); err != nil {
		return err
	}
	for i := range n {
		img := imaging.New(testutil.FixtureFrameSize.X, testutil.FixtureFrameSize.Y, color.NRGBA{R: 20, G: 20, B: 20, A: 255})
		path := filepath.Join(testCtx.FramesDir, testutil.FrameName(i, "3", "png"))
		if err := imaging.Save(img, path); err != nil {
			return fmt.Errorf("failed to write frame: %w", err)
		}
	}
	return nil
}

func (testCtx *TestContext) anEmptyFrameDirectory() error {
	return testCtx.aFrameDirectoryWithFrames(0)
}

func (testCtx *TestContext) aFixtureRegionCatalog() error {
	data, err := testutil.FixtureCatalog().Marshal()
	if err != nil {
		return err
	}
	testCtx.RegionsFile = filepath.Join(testCtx.TempDir, "regions.yaml")
	return os.WriteFile(testCtx.RegionsFile, data, 0o600)
}

// theRecognizerReads scripts the comma separated texts for successive
// frames of one field.
func (testCtx *TestContext) theRecognizerReads(texts, field string) error {
	if testutil.FixtureRegionSize(field) == (image.Point{}) {
		return fmt.Errorf("unknown fixture field %q", field)
	}
	testCtx.Recognizer.AddField(field, strings.Split(texts, ",")...)
	return nil
}

func (testCtx *TestContext) aFileContaining(name, content string) error {
	return os.WriteFile(testCtx.expand(name), []byte(content), 0o600)
}

func (testCtx *TestContext) aCorruptFrame(name string) error {
	return os.WriteFile(filepath.Join(testCtx.FramesDir, name), []byte("not an image"), 0o600)
}

func (testCtx *TestContext) iRunHudscan(line string) error {
	testCtx.runCommand(strings.Fields(testCtx.expand(line)))
	return nil
}

func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastError != nil {
		return fmt.Errorf("command %q failed: %w\nstderr: %s", testCtx.LastCommand, testCtx.LastError, testCtx.LastStderr)
	}
	return nil
}

func (testCtx *TestContext) theCommandShouldFailWith(msg string) error {
	if testCtx.LastError == nil {
		return fmt.Errorf("command %q succeeded, expected failure containing %q", testCtx.LastCommand, msg)
	}
	if !strings.Contains(testCtx.LastError.Error(), msg) {
		return fmt.Errorf("error %q does not contain %q", testCtx.LastError.Error(), msg)
	}
	return nil
}

func (testCtx *TestContext) stdoutLines() []string {
	out := strings.TrimRight(testCtx.LastStdout, "\n")
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

func (testCtx *TestContext) stdoutShouldHaveLines(n int) error {
	if lines := testCtx.stdoutLines(); len(lines) != n {
		return fmt.Errorf("expected %d lines, got %d:\n%s", n, len(lines), testCtx.LastStdout)
	}
	return nil
}

func (testCtx *TestContext) stdoutLineShouldBe(n int, want string) error {
	lines := testCtx.stdoutLines()
	if n < 1 || n > len(lines) {
		return fmt.Errorf("stdout has no line %d:\n%s", n, testCtx.LastStdout)
	}
	if got := lines[n-1]; got != want {
		return fmt.Errorf("line %d: expected %q, got %q", n, want, got)
	}
	return nil
}

func (testCtx *TestContext) stdoutShouldContain(s string) error {
	return containsOrErr("stdout", testCtx.LastStdout, s)
}

func (testCtx *TestContext) stderrShouldContain(s string) error {
	return containsOrErr("stderr", testCtx.LastStderr, s)
}

func (testCtx *TestContext) theFileShouldContain(name, s string) error {
	data, err := os.ReadFile(testCtx.expand(name))
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	return containsOrErr(name, string(data), s)
}

func (testCtx *TestContext) theFileShouldNotExist(name string) error {
	_, err := os.Stat(testCtx.expand(name))
	if err == nil {
		return fmt.Errorf("file %s exists", name)
	}
	if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func containsOrErr(what, haystack, needle string) error {
	if !strings.Contains(haystack, needle) {
		return fmt.Errorf("%s does not contain %q:\n%s", what, needle, haystack)
	}
	return nil
}
