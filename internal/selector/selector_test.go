package selector

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Selector
	}{
		{name: "plain", input: "Foo#bar", want: Selector{Method: "Foo#bar"}},
		{name: "trimmed", input: "  Foo.bar \n", want: Selector{Method: "Foo.bar"}},
		{
			name:  "expressions",
			input: "Foo#bar(a, b.size)",
			want:  Selector{Method: "Foo#bar", Exprs: []string{"a", "b.size"}},
		},
		{
			name:  "empty expressions dropped",
			input: "Foo#bar(a,, ,b)",
			want:  Selector{Method: "Foo#bar", Exprs: []string{"a", "b"}},
		},
		{
			name:  "nested commas stay together",
			input: "Foo#bar(h.fetch(:a, 1), [1, 2].sum)",
			want:  Selector{Method: "Foo#bar", Exprs: []string{"h.fetch(:a, 1)", "[1, 2].sum"}},
		},
		{
			name:  "plain ivar",
			input: "Foo#bar(@name)",
			want:  Selector{Method: "Foo#bar", Exprs: []string{"@name"}},
		},
		{
			name:  "ivar expression gets evaluated",
			input: "Foo#bar(@name.size)",
			want:  Selector{Method: "Foo#bar", Exprs: []string{" @name.size"}},
		},
		{
			name:  "short ivar is an expression",
			input: "Foo#bar(@a)",
			want:  Selector{Method: "Foo#bar", Exprs: []string{" @a"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRejectsInvalidExpressions(t *testing.T) {
	tests := []string{
		"Foo#bar(a +)",
		"Foo#bar(\"open)",
		"Foo#bar(a[1)",
		"Foo#bar(x, y))",
	}

	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input)
			require.ErrorIs(t, err, ErrInvalidExpression)
			assert.Contains(t, err.Error(), "in method")
		})
	}
}

func TestParseEmpty(t *testing.T) {
	_, err := Parse("   ")
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestParseAll(t *testing.T) {
	sels, err := ParseAll([]string{"Foo#a", "", "Foo#b(x)"})
	require.NoError(t, err)
	require.Len(t, sels, 2)
	assert.Equal(t, "Foo#b(x)", sels[1].String())

	_, err = ParseAll([]string{"Foo#a", "Foo#b(x -)"})
	assert.ErrorIs(t, err, ErrInvalidExpression)
}

func TestValidate(t *testing.T) {
	valid := []string{
		"a",
		"@x",
		"a.b(c)[0]",
		"{a: 1}",
		`"a) \" b"`,
		"'('",
		"empty?",
		"x == 1",
		"user.save!",
		"Foo.reset!",
		"!done",
		"x # it's fine",
		"x # trailing +",
		"a +\n# comment\nb",
		`"#{name}"`,
	}
	for _, expr := range valid {
		assert.NoError(t, Validate(expr), expr)
	}

	invalid := []string{"", "  ", "a(", "a)", "[}", "'x", "a ==", "a.", "# only", "a( # )", "a + # b"}
	for _, expr := range invalid {
		assert.ErrorIs(t, Validate(expr), ErrInvalidExpression, expr)
	}
}

func TestReadTracerLines(t *testing.T) {
	lines, err := ReadTracerLines(strings.NewReader("# comment\n\nFoo#a\n  Foo#b(x)  \n#Foo#c\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Foo#a", "Foo#b(x)"}, lines)
}

func TestLoadTracerFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "my.tracer")
	require.NoError(t, os.WriteFile(file, []byte("Foo#a\n# skip\nFoo#b\n"), 0o644))

	lines, err := LoadTracerFile(file)
	require.NoError(t, err)
	assert.Equal(t, []string{"Foo#a", "Foo#b"}, lines)

	_, err = LoadTracerFile(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, ErrTracerNotFound)
}

func TestBundledTracers(t *testing.T) {
	assert.Equal(t, []string{"activerecord", "eventmachine", "io"}, Bundled())

	for _, name := range Bundled() {
		t.Run(name, func(t *testing.T) {
			lines, err := LoadTracerFile(name)
			require.NoError(t, err)
			require.NotEmpty(t, lines)

			_, err = ParseAll(lines)
			assert.NoError(t, err)
		})
	}

	all, err := LoadTracerFiles([]string{"io", "eventmachine"})
	require.NoError(t, err)
	assert.Contains(t, all, "IO.select")
	assert.Contains(t, all, "EventMachine.run")
}
