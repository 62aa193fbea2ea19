// Package globalregistry defines an analyzer that reports use of the
// Prometheus default registry. Collectors must be registered on a registry
// that is passed in explicitly.
package globalregistry

import (
	"fmt"
	"go/ast"
	"go/types"
	"strings"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
)

const (
	prometheusPath = "github.com/prometheus/client_golang/prometheus"
	promautoPath   = prometheusPath + "/promauto"
)

// Analyzer is the globalregistry analyzer.
var Analyzer = &analysis.Analyzer{
	Name:     "globalregistry",
	Doc:      "reports use of the Prometheus default registry (prometheus.MustRegister, prometheus.DefaultRegisterer, promauto.New*)",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

var forbidden = map[string]struct{}{
	"MustRegister":      {},
	"Register":          {},
	"Unregister":        {},
	"DefaultRegisterer": {},
	"DefaultGatherer":   {},
}

func run(pass *analysis.Pass) (any, error) {
	insp, ok := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)
	if !ok {
		return nil, fmt.Errorf("failed to assert type: expected *inspector.Inspector")
	}

	insp.Preorder([]ast.Node{(*ast.SelectorExpr)(nil)}, func(n ast.Node) {
		sel, ok := n.(*ast.SelectorExpr)
		if !ok || sel.Sel == nil {
			return
		}
		if name, bad := globalUse(pass.TypesInfo, sel); bad {
			pass.Reportf(sel.Pos(), "%s uses the global Prometheus registry; register on an explicit prometheus.Registerer instead", name)
		}
	})
	return nil, nil
}

// globalUse reports whether sel refers to a package-level identifier that
// touches the default registry.
func globalUse(info *types.Info, sel *ast.SelectorExpr) (string, bool) {
	if info == nil || info.Uses == nil {
		return "", false
	}
	obj := info.Uses[sel.Sel]
	if obj == nil || obj.Pkg() == nil || obj.Parent() != obj.Pkg().Scope() {
		return "", false
	}

	name := obj.Pkg().Name() + "." + obj.Name()
	switch obj.Pkg().Path() {
	case prometheusPath:
		_, bad := forbidden[obj.Name()]
		return name, bad
	case promautoPath:
		_, isFunc := obj.(*types.Func)
		return name, isFunc && strings.HasPrefix(obj.Name(), "New")
	}
	return "", false
}
