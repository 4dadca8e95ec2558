package pygments

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

type OutputKind int

const (
	OutputText OutputKind = iota
	OutputImage
)

// Output is the presentation-ready result of running a generated script:
// either captured text or the path of a written image file.
type Output struct {
	Kind    OutputKind
	Content string
	Path    string
	// Ext is the formatter's declared file extension, empty when unknown.
	// The host may use it to pick a syntax for the result view.
	Ext string
}

var imageExts = map[string]struct{}{
	"png":  {},
	"gif":  {},
	"jpg":  {},
	"jpeg": {},
	"bmp":  {},
}

// IsImageExt reports whether ext names a raster-image output format.
func IsImageExt(ext string) bool {
	_, ok := imageExts[strings.ToLower(ext)]
	return ok
}

// Runner hands generated scripts to the external interpreter. Blocking and
// synchronous: a hung interpreter hangs the workflow, by contract.
type Runner struct {
	Interpreter string
}

// Run writes code to a temporary script file, invokes the interpreter on it
// and captures stdout. When ext names a raster-image format the output bytes
// go to "<imageBase>.<ext>" instead and the result reports the path. The
// temporary file is removed whether the interpreter succeeded or not.
func (r *Runner) Run(code, imageBase, ext string) (Output, error) {
	interp := r.Interpreter
	if interp == "" {
		interp = DefaultInterpreter
	}

	tmp, err := os.CreateTemp("", "pygments-*.py")
	if err != nil {
		return Output{}, err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(code); err != nil {
		tmp.Close()
		return Output{}, err
	}
	if err := tmp.Close(); err != nil {
		return Output{}, err
	}

	cmd := exec.Command(interp, tmp.Name())
	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(errOut.String())
		if msg == "" {
			msg = err.Error()
		}
		return Output{}, fmt.Errorf("interpreter: %s", msg)
	}

	if IsImageExt(ext) {
		path := imageBase + "." + ext
		if err := os.WriteFile(path, out.Bytes(), 0644); err != nil {
			return Output{}, err
		}
		return Output{Kind: OutputImage, Path: path, Ext: ext}, nil
	}
	return Output{Kind: OutputText, Content: out.String(), Ext: ext}, nil
}
