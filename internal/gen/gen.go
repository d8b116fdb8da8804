// Package gen writes the Go adapters of scanned message contracts.
//
// For every contract the generated file registers its metadata with
// polyglot.MustDefine and declares a constructor returning an
// implementation backed by a *polyglot.Instance.
package gen

import (
	"bytes"
	"errors"
	"fmt"
	"go/format"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"text/template"
	"unicode"
	"unicode/utf8"

	"github.com/pitabwire/polyglot/contract"
	"github.com/pitabwire/polyglot/internal/scan"
)

// DefaultFilename is the name of the generated file.
const DefaultFilename = "polyglot_gen.go"

const filePerm = 0o644

var (
	// ErrNoContracts is returned when there is nothing to generate.
	ErrNoContracts = errors.New("no contracts to generate")
	// ErrMixedPackages is returned for contracts declared in different packages.
	ErrMixedPackages = errors.New("contracts belong to different packages")
	// ErrImportConflict is returned when a parameter type needs a package
	// whose name clashes with an import of the generated file.
	ErrImportConflict = errors.New("import name conflict")
)

const receiver = "m"

//nolint:gochecknoglobals // imports every generated file needs
var baseImports = map[string]string{
	"context":                                "context",
	"golang.org/x/text/language":             "language",
	"github.com/pitabwire/polyglot":          "polyglot",
	"github.com/pitabwire/polyglot/provider": "provider",
}

const contractImport = "github.com/pitabwire/polyglot/contract"

type importSpec struct {
	Path string
	Name string
}

type paramData struct {
	Name string
	Type string
}

type methodData struct {
	Name   string
	Params []paramData
	Args   string
}

type contractData struct {
	Name        string
	Adapter     string
	Constructor string
	Options     []string
	Methods     []methodData
}

type fileData struct {
	Package   string
	Std       []importSpec
	External  []importSpec
	Contracts []contractData
}

// Generate renders the adapters of contracts, which must share one package.
func Generate(contracts []*scan.Contract) ([]byte, error) {
	if len(contracts) == 0 {
		return nil, ErrNoContracts
	}

	data := fileData{Package: contracts[0].PkgName}
	pkgPath := contracts[0].PkgPath

	imports := maps.Clone(baseImports)

	for _, c := range contracts {
		if c.PkgPath != pkgPath {
			return nil, fmt.Errorf("%w: %s and %s", ErrMixedPackages, pkgPath, c.PkgPath)
		}
		for _, imp := range c.Imports {
			imports[imp.Path] = imp.Name
		}
		if c.Handler != "" {
			imports[contractImport] = "contract"
		}
		data.Contracts = append(data.Contracts, contractFor(c, pkgPath))
	}

	if err := checkImports(imports); err != nil {
		return nil, err
	}
	for _, path := range slices.Sorted(maps.Keys(imports)) {
		spec := importSpec{Path: path}
		if name := imports[path]; name != lastElem(path) {
			spec.Name = name
		}
		if strings.Contains(strings.SplitN(path, "/", 2)[0], ".") {
			data.External = append(data.External, spec)
		} else {
			data.Std = append(data.Std, spec)
		}
	}

	var buf bytes.Buffer
	if err := fileTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("executing template: %w", err)
	}

	formatted, err := format.Source(buf.Bytes())
	if err != nil {
		return buf.Bytes(), fmt.Errorf("formatting code: %w (unformatted code returned)", err)
	}
	return formatted, nil
}

// WriteFile generates the adapters of contracts into path.
func WriteFile(path string, contracts []*scan.Contract) error {
	src, err := Generate(contracts)
	if err != nil {
		return err
	}
	if err = os.WriteFile(filepath.Clean(path), src, filePerm); err != nil {
		return fmt.Errorf("writing file %s: %w", path, err)
	}
	return nil
}

func contractFor(c *scan.Contract, pkgPath string) contractData {
	d := contractData{
		Name:        c.Name,
		Adapter:     lowerFirst(c.Name) + "Adapter",
		Constructor: "New" + upperFirst(c.Name),
	}

	if c.Bundle != "" {
		d.Options = append(d.Options, "polyglot.WithBundleName("+strconv.Quote(c.Bundle)+")")
	}
	switch c.Handler {
	case "":
	case contract.HandlerBundle:
		d.Options = append(d.Options, "polyglot.WithHandlerKind(contract.HandlerBundle)")
	case contract.HandlerKey:
		d.Options = append(d.Options, "polyglot.WithHandlerKind(contract.HandlerKey)")
	default:
		d.Options = append(d.Options, "polyglot.WithHandlerKind(contract.HandlerKind("+strconv.Quote(string(c.Handler))+"))")
	}
	for _, e := range c.Embeds {
		base := e.Name
		if e.PkgPath != pkgPath {
			base = e.PkgName + "." + e.Name
		}
		d.Options = append(d.Options, "polyglot.Embeds["+base+"]()")
	}

	for _, msg := range c.Messages {
		var msgOpts []string
		if msg.Key != "" {
			msgOpts = append(msgOpts, "polyglot.Key("+strconv.Quote(msg.Key)+")")
		}
		if msg.HasDefault {
			msgOpts = append(msgOpts, "polyglot.Default("+strconv.Quote(msg.Default)+")")
		}
		if len(msgOpts) > 0 {
			d.Options = append(d.Options,
				"polyglot.WithMessage("+strconv.Quote(msg.Name)+", "+strings.Join(msgOpts, ", ")+")")
		}

		d.Methods = append(d.Methods, methodFor(msg))
	}
	return d
}

func methodFor(msg scan.Message) methodData {
	md := methodData{Name: msg.Name}

	taken := map[string]bool{receiver: true}
	for _, name := range baseImports {
		taken[name] = true
	}

	names := make([]string, 0, len(msg.Params))
	for i, p := range msg.Params {
		name := p.Name
		if taken[name] {
			name = "arg" + strconv.Itoa(i)
		}
		taken[name] = true
		names = append(names, name)
		md.Params = append(md.Params, paramData{Name: name, Type: p.Type})
	}

	if len(names) > 0 {
		md.Args = ", " + strings.Join(names, ", ")
	}
	return md
}

func checkImports(imports map[string]string) error {
	byName := map[string]string{}
	for path, name := range imports {
		if other, ok := byName[name]; ok {
			return fmt.Errorf("%w: %s is imported from %s and %s", ErrImportConflict, name, other, path)
		}
		byName[name] = path
	}
	return nil
}

func lastElem(path string) string {
	return path[strings.LastIndexByte(path, '/')+1:]
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToLower(r)) + s[size:]
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}

//nolint:gochecknoglobals // parsed once
var fileTemplate = template.Must(template.New("adapters").Parse(`// Code generated by polyglot generate. DO NOT EDIT.

package {{.Package}}

import (
{{range .Std}}	{{if .Name}}{{.Name}} {{end}}"{{.Path}}"
{{end}}
{{range .External}}	{{if .Name}}{{.Name}} {{end}}"{{.Path}}"
{{end}})

func init() {
{{- range .Contracts}}
	polyglot.MustDefine[{{.Name}}]({{range .Options}}
		{{.}},{{end}}
	)
{{- end}}
}
{{range $c := .Contracts}}
type {{.Adapter}} struct {
	ctx      context.Context
	instance *polyglot.Instance
}

// {{.Constructor}} returns the {{.Name}} messages of locale, resolved from p.
// The messages panic with a *polyglot.Error when resolution fails.
func {{.Constructor}}(ctx context.Context, locale language.Tag, p provider.Provider) ({{.Name}}, error) {
	instance, err := polyglot.CreateInstance[{{.Name}}](ctx, locale, p)
	if err != nil {
		return nil, err
	}
	return &{{.Adapter}}{ctx: ctx, instance: instance}, nil
}
{{range .Methods}}
func (m *{{$c.Adapter}}) {{.Name}}({{range $i, $p := .Params}}{{if $i}}, {{end}}{{$p.Name}} {{$p.Type}}{{end}}) string {
	return m.instance.MustMessage(m.ctx, "{{.Name}}"{{.Args}})
}
{{end}}{{end}}`))
