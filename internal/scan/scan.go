// Package scan finds message contracts in Go source.
//
// A contract is an interface type whose declaration carries the directive
//
//	//polyglot:contract [bundle=NAME] [handler=KIND]
//
// and whose methods may carry
//
//	//polyglot:message [key=KEY] [default="TEXT"]
package scan

import (
	"errors"
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"maps"
	"slices"

	"golang.org/x/tools/go/packages"

	"github.com/pitabwire/polyglot/contract"
)

// LoadMode specifies what information to load from packages.
const LoadMode = packages.NeedName |
	packages.NeedFiles |
	packages.NeedSyntax |
	packages.NeedTypes |
	packages.NeedTypesInfo |
	packages.NeedImports

// Param is one parameter of a message method.
type Param struct {
	Name string
	Type string
}

// Message is one method of a scanned contract.
type Message struct {
	Name       string
	Params     []Param
	Key        string
	Default    string
	HasDefault bool
}

// Arity is the number of parameters.
func (m Message) Arity() int {
	return len(m.Params)
}

// Import is a package referenced by parameter or embedded types.
type Import struct {
	Path string
	Name string
}

// Embed is an interface embedded in a contract.
type Embed struct {
	PkgPath string
	PkgName string
	Name    string
}

// Contract is a contract found in source.
type Contract struct {
	PkgPath string
	PkgName string
	Name    string
	Bundle  string
	Handler contract.HandlerKind
	// Messages lists own methods in declaration order followed by the
	// methods of embedded interfaces.
	Messages []Message
	Embeds   []Embed
	Imports  []Import
	Pos      token.Position
}

// QualifiedName is "pkgpath.Name", the name the contract has at run time.
func (c *Contract) QualifiedName() string {
	return c.PkgPath + "." + c.Name
}

// Build converts c into a static contract description.
func (c *Contract) Build() (*contract.Contract, error) {
	methods := make([]contract.Method, 0, len(c.Messages))
	for _, m := range c.Messages {
		methods = append(methods, contract.Method{
			Name:       m.Name,
			Arity:      m.Arity(),
			Key:        m.Key,
			Default:    m.Default,
			HasDefault: m.HasDefault,
		})
	}

	return contract.New(c.QualifiedName(),
		contract.WithBundleName(c.Bundle),
		contract.WithHandler(c.Handler),
		contract.WithMethods(methods...))
}

type decl struct {
	pkg   *packages.Package
	spec  *ast.TypeSpec
	iface *ast.InterfaceType
	docs  []*ast.CommentGroup
}

type scanner struct {
	decls map[*types.TypeName]*decl
	order []*decl
}

// Packages loads the packages matching patterns, relative to dir, and
// returns their contracts in source order.
func Packages(dir string, patterns ...string) ([]*Contract, error) {
	cfg := &packages.Config{
		Mode: LoadMode,
		Dir:  dir,
	}

	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("failed to load packages: %w", err)
	}

	var errs []error
	for _, pkg := range pkgs {
		for _, e := range pkg.Errors {
			errs = append(errs, e)
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("package errors: %w", errors.Join(errs...))
	}

	s := &scanner{decls: map[*types.TypeName]*decl{}}
	for _, pkg := range pkgs {
		s.index(pkg)
	}

	var contracts []*Contract
	for _, d := range s.order {
		args, ok := findDirective(contractDirective, d.docs...)
		if !ok {
			continue
		}
		c, err := s.contract(d, args)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.pkg.Fset.Position(d.spec.Pos()), err)
		}
		contracts = append(contracts, c)
	}
	return contracts, nil
}

func (s *scanner) index(pkg *packages.Package) {
	for _, file := range pkg.Syntax {
		for _, fileDecl := range file.Decls {
			gen, ok := fileDecl.(*ast.GenDecl)
			if !ok || gen.Tok != token.TYPE {
				continue
			}
			for _, spec := range gen.Specs {
				ts, ok := spec.(*ast.TypeSpec)
				if !ok {
					continue
				}
				iface, ok := ts.Type.(*ast.InterfaceType)
				if !ok {
					continue
				}
				obj, ok := pkg.TypesInfo.Defs[ts.Name].(*types.TypeName)
				if !ok {
					continue
				}

				d := &decl{pkg: pkg, spec: ts, iface: iface, docs: []*ast.CommentGroup{gen.Doc, ts.Doc}}
				s.decls[obj] = d
				s.order = append(s.order, d)
			}
		}
	}
}

func (s *scanner) contract(d *decl, directive string) (*Contract, error) {
	args, err := parseArgs(directive)
	if err != nil {
		return nil, err
	}
	if err = checkKnown(args, "bundle", "handler"); err != nil {
		return nil, err
	}
	if d.spec.TypeParams != nil {
		return nil, fmt.Errorf("%w: contract %s is generic", contract.ErrInvalidArgument, d.spec.Name.Name)
	}

	c := &Contract{
		PkgPath: d.pkg.PkgPath,
		PkgName: d.pkg.Name,
		Name:    d.spec.Name.Name,
		Bundle:  args["bundle"],
		Handler: contract.HandlerKind(args["handler"]),
		Pos:     d.pkg.Fset.Position(d.spec.Pos()),
	}

	imports := map[string]string{}
	qualifier := func(p *types.Package) string {
		if p.Path() == c.PkgPath {
			return ""
		}
		imports[p.Path()] = p.Name()
		return p.Name()
	}

	seen := map[string]bool{}
	if err = s.collect(c, d, qualifier, seen, true); err != nil {
		return nil, err
	}

	for _, path := range slices.Sorted(maps.Keys(imports)) {
		c.Imports = append(c.Imports, Import{Path: path, Name: imports[path]})
	}
	return c, nil
}

func (s *scanner) collect(c *Contract, d *decl, q types.Qualifier, seen map[string]bool, root bool) error {
	var embedded []*types.Named

	for _, field := range d.iface.Methods.List {
		if len(field.Names) == 0 {
			named, ok := types.Unalias(d.pkg.TypesInfo.TypeOf(field.Type)).(*types.Named)
			if !ok {
				return fmt.Errorf("%w: %s embeds a non interface element",
					contract.ErrInvalidArgument, d.spec.Name.Name)
			}
			embedded = append(embedded, named)
			continue
		}

		args, _ := findDirective(messageDirective, field.Doc, field.Comment)
		msgArgs, err := parseArgs(args)
		if err != nil {
			return err
		}
		if err = checkKnown(msgArgs, "key", "default"); err != nil {
			return err
		}

		for _, name := range field.Names {
			fn, ok := d.pkg.TypesInfo.Defs[name].(*types.Func)
			if !ok {
				continue
			}
			msg, err := message(d.spec.Name.Name, fn, q)
			if err != nil {
				return err
			}
			msg.Key = msgArgs["key"]
			msg.Default, msg.HasDefault = msgArgs["default"]
			c.add(msg, seen)
		}
	}

	for _, named := range embedded {
		obj := named.Obj()
		if root && obj.Pkg() != nil {
			q(obj.Pkg())
			c.Embeds = append(c.Embeds, Embed{PkgPath: obj.Pkg().Path(), PkgName: obj.Pkg().Name(), Name: obj.Name()})
		}

		if inner, ok := s.decls[obj]; ok {
			if err := s.collect(c, inner, q, seen, false); err != nil {
				return err
			}
			continue
		}

		iface, ok := named.Underlying().(*types.Interface)
		if !ok {
			return fmt.Errorf("%w: %s embeds %s which is no interface",
				contract.ErrInvalidArgument, d.spec.Name.Name, obj.Name())
		}
		for i := range iface.NumMethods() {
			msg, err := message(obj.Name(), iface.Method(i), q)
			if err != nil {
				return err
			}
			c.add(msg, seen)
		}
	}
	return nil
}

func (c *Contract) add(msg Message, seen map[string]bool) {
	if seen[msg.Name] {
		return
	}
	seen[msg.Name] = true
	c.Messages = append(c.Messages, msg)
}

func message(owner string, fn *types.Func, q types.Qualifier) (Message, error) {
	sig, ok := fn.Type().(*types.Signature)
	if !ok {
		return Message{}, fmt.Errorf("%w: %s of %s is no method", contract.ErrInvalidArgument, fn.Name(), owner)
	}
	if sig.Variadic() {
		return Message{}, fmt.Errorf("%w: the method '%s' of '%s' is variadic",
			contract.ErrInvalidMethodSignature, fn.Name(), owner)
	}
	results := sig.Results()
	if results.Len() != 1 || !types.Identical(results.At(0).Type(), types.Typ[types.String]) {
		return Message{}, fmt.Errorf("%w: the method '%s' of '%s' does not return a value of type string",
			contract.ErrInvalidMethodSignature, fn.Name(), owner)
	}

	params := sig.Params()
	msg := Message{Name: fn.Name(), Params: make([]Param, 0, params.Len())}
	for i := range params.Len() {
		p := params.At(i)
		name := p.Name()
		if name == "" || name == "_" {
			name = fmt.Sprintf("arg%d", i)
		}
		msg.Params = append(msg.Params, Param{Name: name, Type: types.TypeString(p.Type(), q)})
	}
	return msg, nil
}
