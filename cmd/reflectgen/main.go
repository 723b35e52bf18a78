// Command reflectgen emits a registration file for one or more exported
// struct types in a package: one Register/Property call per exported
// field, so registration doesn't have to be kept in sync with a struct's
// field list by hand. It loads and type-checks the target package with
// golang.org/x/tools/go/packages and renders the output with
// github.com/dave/jennifer.
package main

import (
	"flag"
	"fmt"
	"go/types"
	"log"
	"os"
	"strings"

	"github.com/dave/jennifer/jen"
	"github.com/google/uuid"
	"golang.org/x/tools/go/packages"
)

func main() {
	pkgPath := flag.String("pkg", "", "import path of the package containing the target types")
	typeNames := flag.String("types", "", "comma-separated exported struct type names; empty means every exported struct in the package")
	out := flag.String("out", "", "output file path (default: stdout)")
	flag.Parse()

	if *pkgPath == "" {
		log.Fatal("reflectgen: -pkg is required")
	}

	if err := run(*pkgPath, *typeNames, *out); err != nil {
		log.Fatalf("reflectgen: %v", err)
	}
}

func run(pkgPath, typeNames, out string) error {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedTypes | packages.NeedTypesInfo | packages.NeedSyntax | packages.NeedDeps,
	}
	pkgs, err := packages.Load(cfg, pkgPath)
	if err != nil {
		return fmt.Errorf("loading %s: %w", pkgPath, err)
	}
	if packages.PrintErrors(pkgs) > 0 {
		return fmt.Errorf("%s failed to type-check", pkgPath)
	}
	if len(pkgs) != 1 {
		return fmt.Errorf("expected exactly one package for %s, got %d", pkgPath, len(pkgs))
	}
	pkg := pkgs[0]

	var want map[string]bool
	if typeNames != "" {
		want = map[string]bool{}
		for _, n := range strings.Split(typeNames, ",") {
			want[strings.TrimSpace(n)] = true
		}
	}

	file := jen.NewFile(pkg.Name)
	file.HeaderComment(fmt.Sprintf("Code generated by reflectgen. DO NOT EDIT. run=%s", uuid.New()))

	generated := 0
	scope := pkg.Types.Scope()
	for _, name := range scope.Names() {
		if want != nil && !want[name] {
			continue
		}
		obj := scope.Lookup(name)
		if obj == nil || !obj.Exported() {
			continue
		}
		named, ok := obj.Type().(*types.Named)
		if !ok {
			continue
		}
		structType, ok := named.Underlying().(*types.Struct)
		if !ok {
			continue
		}
		emitRegistration(file, pkg.Name, name, structType)
		generated++
	}
	if generated == 0 {
		return fmt.Errorf("no exported struct types found in %s (filter: %q)", pkgPath, typeNames)
	}

	if out == "" {
		return file.Render(os.Stdout)
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("creating %s: %w", out, err)
	}
	defer f.Close()
	return file.Render(f)
}

// emitRegistration appends a RegisterGenerated_<Type>(mgr) function to
// file, calling goflect.Register[T] and one goflect.Property per exported
// field. Unexported fields are skipped; manual registration can only
// reach what the registering code can name, and generated registration
// keeps to the same boundary.
func emitRegistration(file *jen.File, pkgName, typeName string, st *types.Struct) {
	funcName := "RegisterGenerated_" + typeName
	body := []jen.Code{
		jen.Id("b").Op(":=").Qual("github.com/zond/goflect", "Register").Index(jen.Id(typeName)).Call(jen.Id("mgr")),
	}
	for i := 0; i < st.NumFields(); i++ {
		f := st.Field(i)
		if !f.Exported() {
			continue
		}
		propName := lowerFirst(f.Name())
		body = append(body, jen.Qual("github.com/zond/goflect", "Property").Call(
			jen.Id("b"),
			jen.Lit(propName),
			jen.Func().Params(jen.Id("v").Op("*").Id(typeName)).Op("*").Add(typeExpr(f.Type())).Block(
				jen.Return(jen.Op("&").Id("v").Dot(f.Name())),
			),
		))
	}
	body = append(body, jen.Return(jen.Id("b")))

	file.Comment(fmt.Sprintf("%s registers %s.%s's exported fields as properties.", funcName, pkgName, typeName))
	file.Func().Id(funcName).Params(
		jen.Id("mgr").Op("*").Qual("github.com/zond/goflect/registry", "Manager"),
	).Op("*").Qual("github.com/zond/goflect", "Builder").Index(jen.Id(typeName)).Block(body...)
}

// typeExpr renders a go/types.Type as a jennifer expression for the
// handful of shapes a registered field is expected to have: named types,
// basic types, slices, maps and pointers. Anything more exotic (channels,
// function fields) falls through to the raw type string and is left for
// the caller to register by hand if they really mean it.
func typeExpr(t types.Type) jen.Code {
	switch tt := t.(type) {
	case *types.Basic:
		return jen.Id(tt.Name())
	case *types.Named:
		obj := tt.Obj()
		if pkg := obj.Pkg(); pkg != nil {
			return jen.Qual(pkg.Path(), obj.Name())
		}
		return jen.Id(obj.Name())
	case *types.Slice:
		return jen.Index().Add(typeExpr(tt.Elem()))
	case *types.Map:
		return jen.Map(typeExpr(tt.Key())).Add(typeExpr(tt.Elem()))
	case *types.Pointer:
		return jen.Op("*").Add(typeExpr(tt.Elem()))
	default:
		return jen.Id(t.String())
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
