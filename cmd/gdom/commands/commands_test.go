package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-dominance/pkg/ir"
	"github.com/l3aro/go-dominance/pkg/report"
)

const program = `{
  "functions": [
    {
      "name": "main",
      "args": [{"name": "cond", "type": "bool"}],
      "instrs": [
        {"op": "br", "args": ["cond"], "labels": ["then", "else"]},
        {"label": "then"},
        {"op": "jmp", "labels": ["merge"]},
        {"label": "else"},
        {"label": "merge"},
        {"op": "ret"}
      ]
    },
    {
      "name": "bad",
      "instrs": [{"op": "jmp", "labels": ["nowhere"]}]
    }
  ]
}`

const source = `package p

func Abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
`

// execute runs the root command in a scratch home and working directory
// with every flag back at its default.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	{
		dir := t.TempDir()
		wd, err := os.Getwd()
		if err != nil {
			t.Fatal(err)
		}
		if err := os.Chdir(dir); err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = os.Chdir(wd) })
	}

	reset := func(fs *pflag.FlagSet) {
		fs.VisitAll(func(f *pflag.Flag) {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		})
	}
	reset(RootCmd.PersistentFlags())
	for _, c := range RootCmd.Commands() {
		reset(c.Flags())
	}

	var out, errOut bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(&errOut)
	RootCmd.SetArgs(args)
	err := RootCmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDomCommand(t *testing.T) {
	path := writeFile(t, "prog.json", program)

	out, err := execute(t, "dom", path, "--function", "main")
	require.NoError(t, err)

	assert.Contains(t, out, "@main\n  .b1:\n    br cond .then .else;\n")
	assert.Contains(t, out, "  .else:\n    jmp .merge;\n", "fall-through gets an explicit jump")
	assert.Contains(t, out, "  idom:\n    then: b1\n    else: b1\n    merge: b1\n")
	assert.Contains(t, out, "  frontier:\n    then: merge\n    else: merge\n")
	assert.NotContains(t, out, "@bad")
}

func TestFailedFunctionsReported(t *testing.T) {
	path := writeFile(t, "prog.json", program)

	out, err := execute(t, "cfg", path)
	assert.ErrorIs(t, err, errFunctionsFailed)
	assert.Contains(t, out, "@main\n")
	assert.Contains(t, out, `error: function bad: block b2: unknown branch target: "nowhere"`)
}

func TestFailFast(t *testing.T) {
	path := writeFile(t, "prog.json", program)

	out, err := execute(t, "cfg", path, "--fail-fast")
	require.Error(t, err)
	assert.NotErrorIs(t, err, errFunctionsFailed)
	assert.Empty(t, out)
}

func TestJSONFormatAndPrefix(t *testing.T) {
	path := writeFile(t, "prog.json", program)

	out, err := execute(t, "blocks", path, "--format", "json", "--prefix", "blk", "--function", "main")
	require.NoError(t, err)

	var funcs []report.Function
	require.NoError(t, json.Unmarshal([]byte(out), &funcs))
	require.Len(t, funcs, 1)
	assert.Equal(t, "blk1", funcs[0].Blocks[0].Name)
	assert.Nil(t, funcs[0].Blocks[0].Succs)
}

func TestConfigFileSettings(t *testing.T) {
	path := writeFile(t, "prog.json", program)
	cfgPath := writeFile(t, "config.yaml", "name_prefix: n\nformat: yaml\n")

	out, err := execute(t, "dom", path, "--config", cfgPath, "--function", "main")
	require.NoError(t, err)
	assert.Contains(t, out, "name: n1\n")

	_, err = execute(t, "dom", path, "--format", "xml")
	assert.Error(t, err)

	_, err = execute(t, "dom", path, "--log-level", "loud")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log_level")
}

func TestUnknownFunction(t *testing.T) {
	path := writeFile(t, "prog.json", program)

	_, err := execute(t, "dom", path, "--function", "missing")
	assert.Error(t, err)
}

func TestSourceCommand(t *testing.T) {
	path := writeFile(t, "p.go", source)

	out, err := execute(t, "source", path, "Abs", "--view", "cfg")
	require.NoError(t, err)
	assert.Contains(t, out, "@Abs\n  .b1:\n")
	assert.Contains(t, out, "  .if.then.1:\n")

	out, err = execute(t, "source", path, "--emit-ir")
	require.NoError(t, err)
	prog, err := ir.Decode(bytes.NewReader([]byte(out)))
	require.NoError(t, err)
	require.Len(t, prog.Functions, 1)
	assert.Equal(t, "Abs", prog.Functions[0].Name)

	_, err = execute(t, "source", path, "Missing")
	assert.Error(t, err)
}

func TestParseView(t *testing.T) {
	tests := []struct {
		in      string
		want    report.View
		wantErr bool
	}{
		{"blocks", report.ViewBlocks, false},
		{"cfg", report.ViewCFG, false},
		{"dom", report.ViewDom, false},
		{"dataflow", report.ViewDataflow, false},
		{"tree", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseView(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range RootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"blocks", "cfg", "dom", "dataflow", "slice", "source", "ssa", "init"} {
		assert.True(t, names[want], want)
	}
}

func TestSourceDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "abs.go"), []byte(source), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "abs_test.go"), []byte("package p\n\nfunc helper() {}\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".gdomignore"), []byte("skip.go\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.go"), []byte("package p\n\nfunc Skipped() {}\n"), 0644))

	out, err := execute(t, "source", dir, "--view", "blocks", "--skip-tests")
	require.NoError(t, err)
	assert.Contains(t, out, "@"+filepath.Join(dir, "abs.go")+":Abs\n")
	assert.NotContains(t, out, "helper")
	assert.NotContains(t, out, "Skipped")
}

func TestSliceCommand(t *testing.T) {
	path := writeFile(t, "prog.json", program)

	out, err := execute(t, "slice", path, "main", "then")
	require.NoError(t, err)
	assert.Contains(t, out, "=== Slice for function: main (block then, backward) ===\n")
	assert.Contains(t, out, "Blocks (2): b1 then\n")

	out, err = execute(t, "slice", path, "main", "b1", "--forward", "--format", "json")
	require.NoError(t, err)
	var got struct {
		Direction string   `json:"direction"`
		Blocks    []string `json:"blocks"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "forward", got.Direction)
	assert.Equal(t, []string{"b1", "then", "else"}, got.Blocks)

	_, err = execute(t, "slice", path, "bad", "b1")
	assert.Error(t, err)
}
