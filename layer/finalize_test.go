package layer

import (
	"bufio"
	"bytes"
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"io"
	"os"
	"os/exec"
	"strings"
	"testing"
)

// exportData maps every package the layer package depends on to its
// compiled export file.
func exportData(t *testing.T) map[string]string {
	t.Helper()
	if testing.Short() {
		t.Skip("compiles the dependency graph")
	}
	gotool, err := exec.LookPath("go")
	if err != nil {
		t.Skip("go command not available")
	}
	var stderr bytes.Buffer
	cmd := exec.Command(gotool, "list", "-export", "-deps", "-f", "{{.ImportPath}}\t{{.Export}}", "github.com/eth2030/ethlayer/layer")
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		t.Fatalf("go list: %v\n%s", err, stderr.String())
	}
	exports := make(map[string]string)
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		path, file, ok := strings.Cut(sc.Text(), "\t")
		if ok && file != "" {
			exports[path] = file
		}
	}
	return exports
}

func typeCheck(t *testing.T, exports map[string]string, src string) []error {
	t.Helper()
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "finalize.go", src, 0)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	imp := importer.ForCompiler(fset, "gc", func(path string) (io.ReadCloser, error) {
		return os.Open(exports[path])
	})
	var errs []error
	conf := types.Config{Importer: imp, Error: func(err error) { errs = append(errs, err) }}
	conf.Check("finalize", fset, []*ast.File{f}, nil)
	return errs
}

func TestIntoLayer_RejectsUnsetProvider(t *testing.T) {
	exports := exportData(t)

	errs := typeCheck(t, exports, `package finalize

import "github.com/eth2030/ethlayer/layer"

var _ = layer.IntoLayer(layer.Default())
`)
	if len(errs) == 0 {
		t.Fatal("IntoLayer(Default()) type-checked")
	}
	var found bool
	for _, err := range errs {
		msg := err.Error()
		if strings.Contains(msg, "Unset does not satisfy") && strings.Contains(msg, "StateReader") {
			found = true
		}
	}
	if !found {
		t.Fatalf("errors = %v, want Unset rejected as a StateReader", errs)
	}

	errs = typeCheck(t, exports, `package finalize

import (
	"github.com/eth2030/ethlayer/chain"
	"github.com/eth2030/ethlayer/layer"
)

func build(r chain.StateReader) {
	_ = layer.IntoLayer(layer.Default().WithProvider(r))
}
`)
	if len(errs) != 0 {
		t.Fatalf("IntoLayer with a provider failed to type-check: %v", errs)
	}
}
