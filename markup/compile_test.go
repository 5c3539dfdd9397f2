package markup

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/admsmc/dykstra-funeral-website-sub003/docgen"
)

func testData() docgen.DataContext {
	return docgen.DataContext{
		"decedentName": docgen.String("Eleanor M. Visser"),
		"serviceDate":  docgen.Date(time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)),
		"total":        docgen.Number(1540.5),
		"hasViewing":   docgen.Bool(true),
		"officiant": docgen.Mapping(docgen.DataContext{
			"name":  docgen.String("Rev. J. Kamp"),
			"title": docgen.String("Pastor"),
		}),
		"hymns": docgen.Sequence(
			docgen.Mapping(docgen.DataContext{"title": docgen.String("Abide With Me"), "number": docgen.Number(287)}),
			docgen.Mapping(docgen.DataContext{"title": docgen.String("It Is Well"), "number": docgen.Number(412)}),
			docgen.Mapping(docgen.DataContext{"title": docgen.String("Amazing Grace"), "number": docgen.Number(104)}),
		),
	}
}

func compileErrorKind(t *testing.T, err error) ErrorKind {
	t.Helper()
	if err == nil {
		t.Fatalf("expected compile error")
	}
	if kind := docgen.KindFromError(err); kind != docgen.KindCompile {
		t.Fatalf("expected compile kind, got %s", kind)
	}
	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CompileError, got %T: %v", err, err)
	}
	return ce.Kind
}

func TestCompile_Substitution(t *testing.T) {
	c := New()
	result, err := c.Compile("<p>In memory of {{decedentName}}</p>", docgen.BindingSchema{}, testData())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if result.HTML != "<p>In memory of Eleanor M. Visser</p>" {
		t.Fatalf("unexpected output: %q", result.HTML)
	}
	if len(result.ConsumedPaths) != 1 || result.ConsumedPaths[0] != "decedentName" {
		t.Fatalf("unexpected consumed paths: %v", result.ConsumedPaths)
	}
}

func TestCompile_NestedPath(t *testing.T) {
	c := New()
	result, err := c.Compile("{{officiant.name}}, {{officiant.title}}", docgen.BindingSchema{}, testData())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if result.HTML != "Rev. J. Kamp, Pastor" {
		t.Fatalf("unexpected output: %q", result.HTML)
	}
}

func TestCompile_EscapesSubstitutedText(t *testing.T) {
	c := New()
	data := docgen.DataContext{"note": docgen.String(`<script>alert("x")</script>`)}
	result, err := c.Compile("{{note}}", docgen.BindingSchema{}, data)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if strings.Contains(result.HTML, "<script>") {
		t.Fatalf("substituted text was not escaped: %q", result.HTML)
	}
}

func TestCompile_UnknownBindingFails(t *testing.T) {
	c := New()
	_, err := c.Compile("<p>{{noSuchField}}</p>", docgen.BindingSchema{}, testData())
	if kind := compileErrorKind(t, err); kind != UnknownBinding {
		t.Fatalf("expected UnknownBinding, got %s", kind)
	}
	// The offending path is identified; the binding never renders empty.
	if !strings.Contains(err.Error(), "noSuchField") {
		t.Fatalf("error does not name the path: %v", err)
	}
}

func TestCompile_MissingBindingPolicy(t *testing.T) {
	schema := docgen.BindingSchema{Fields: []docgen.BindingField{
		{Path: "nickname", Kind: docgen.ValueString},
		{Path: "decedentName", Kind: docgen.ValueString, Required: true},
		{Path: "epitaph", Kind: docgen.ValueString, Required: true},
	}}

	c := New()
	// Declared optional and absent renders empty.
	result, err := c.Compile("[{{nickname}}]", schema, testData())
	if err != nil {
		t.Fatalf("optional absent binding should compile: %v", err)
	}
	if result.HTML != "[]" {
		t.Fatalf("unexpected output: %q", result.HTML)
	}

	// Declared required and absent fails with the path.
	_, err = c.Compile("{{epitaph}}", schema, testData())
	if kind := compileErrorKind(t, err); kind != UnknownBinding {
		t.Fatalf("expected UnknownBinding for absent required, got %s", kind)
	}
}

func TestCompile_Conditionals(t *testing.T) {
	c := New()
	source := "{{#if hasViewing}}Viewing at 10am.{{else}}No viewing.{{/if}}"

	result, err := c.Compile(source, docgen.BindingSchema{}, testData())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if result.HTML != "Viewing at 10am." {
		t.Fatalf("unexpected output: %q", result.HTML)
	}

	data := testData()
	data["hasViewing"] = docgen.Bool(false)
	result, err = c.Compile(source, docgen.BindingSchema{}, data)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if result.HTML != "No viewing." {
		t.Fatalf("unexpected output: %q", result.HTML)
	}
}

func TestCompile_IterationPreservesOrder(t *testing.T) {
	c := New()
	result, err := c.Compile("{{#each hymns}}{{@ordinal}}:{{title}};{{/each}}", docgen.BindingSchema{}, testData())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	want := "1:Abide With Me;2:It Is Well;3:Amazing Grace;"
	if result.HTML != want {
		t.Fatalf("unexpected output: %q", result.HTML)
	}
	found := false
	for _, path := range result.ConsumedPaths {
		if path == "hymns.title" {
			found = true
		}
	}
	if !found {
		t.Fatalf("iterated member path not recorded: %v", result.ConsumedPaths)
	}
}

func TestCompile_Helpers(t *testing.T) {
	c := New()
	cases := []struct {
		name   string
		source string
		want   string
	}{
		{"formatDate", `{{formatDate "January 2, 2006" serviceDate}}`, "March 14, 2026"},
		{"formatCurrency", "{{formatCurrency total}}", "$1,540.50"},
		{"ordinal", "{{#each hymns}}{{ordinal number}} {{/each}}", "287th 412th 104th "},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := c.Compile(tc.source, docgen.BindingSchema{}, testData())
			if err != nil {
				t.Fatalf("compile: %v", err)
			}
			if result.HTML != tc.want {
				t.Fatalf("got %q, want %q", result.HTML, tc.want)
			}
		})
	}
}

func TestCompile_HelperArityMismatch(t *testing.T) {
	c := New()
	_, err := c.Compile("{{formatCurrency total serviceDate}}", docgen.BindingSchema{}, testData())
	if kind := compileErrorKind(t, err); kind != HelperArityMismatch {
		t.Fatalf("expected HelperArityMismatch, got %s", kind)
	}
}

func TestCompile_Malformed(t *testing.T) {
	c := New()
	cases := []struct {
		name   string
		source string
	}{
		{"unterminated expression", "{{decedentName"},
		{"empty expression", "{{}}"},
		{"unclosed if", "{{#if hasViewing}}always"},
		{"stray end", "text{{/if}}"},
		{"stray else", "text{{else}}"},
		{"unknown block", "{{#unless hasViewing}}x{{/unless}}"},
		{"unknown helper", `{{shout decedentName "loud"}}`},
		{"each over scalar", "{{#each decedentName}}x{{/each}}"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.Compile(tc.source, docgen.BindingSchema{}, testData())
			if kind := compileErrorKind(t, err); kind != MalformedExpression {
				t.Fatalf("expected MalformedExpression, got %s", kind)
			}
		})
	}
}

func TestCompile_OptionalSequenceAndCondition(t *testing.T) {
	schema := docgen.BindingSchema{Fields: []docgen.BindingField{
		{Path: "pallbearers", Kind: docgen.ValueSequence},
		{Path: "hasReception", Kind: docgen.ValueBool},
	}}
	c := New()
	result, err := c.Compile(
		"{{#each pallbearers}}{{this}}{{/each}}{{#if hasReception}}Reception follows.{{/if}}done",
		schema, testData())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if result.HTML != "done" {
		t.Fatalf("unexpected output: %q", result.HTML)
	}
}

func TestCompile_Deterministic(t *testing.T) {
	c := New()
	source := `{{decedentName}} {{formatCurrency total}} {{#each hymns}}{{title}} {{/each}}`
	first, err := c.Compile(source, docgen.BindingSchema{}, testData())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	second, err := c.Compile(source, docgen.BindingSchema{}, testData())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if first.HTML != second.HTML {
		t.Fatalf("compile is not deterministic")
	}
}
