// Command staticlint runs the repository's multichecker: the x/tools vet
// passes, staticcheck SA checks, ST1000, nilerr, forcetypeassert and
// globalregistry.
package main

import (
	"os"
	"strings"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/multichecker"
	"golang.org/x/tools/go/analysis/passes/assign"
	"golang.org/x/tools/go/analysis/passes/atomic"
	"golang.org/x/tools/go/analysis/passes/bools"
	"golang.org/x/tools/go/analysis/passes/copylock"
	"golang.org/x/tools/go/analysis/passes/defers"
	"golang.org/x/tools/go/analysis/passes/errorsas"
	"golang.org/x/tools/go/analysis/passes/httpresponse"
	"golang.org/x/tools/go/analysis/passes/ifaceassert"
	"golang.org/x/tools/go/analysis/passes/lostcancel"
	"golang.org/x/tools/go/analysis/passes/nilfunc"
	"golang.org/x/tools/go/analysis/passes/nilness"
	"golang.org/x/tools/go/analysis/passes/printf"
	"golang.org/x/tools/go/analysis/passes/shadow"
	"golang.org/x/tools/go/analysis/passes/sigchanyzer"
	"golang.org/x/tools/go/analysis/passes/stdmethods"
	"golang.org/x/tools/go/analysis/passes/stringintconv"
	"golang.org/x/tools/go/analysis/passes/structtag"
	"golang.org/x/tools/go/analysis/passes/tests"
	"golang.org/x/tools/go/analysis/passes/timeformat"
	"golang.org/x/tools/go/analysis/passes/unmarshal"
	"golang.org/x/tools/go/analysis/passes/unreachable"
	"golang.org/x/tools/go/analysis/passes/unusedresult"
	"honnef.co/go/tools/analysis/lint"
	"honnef.co/go/tools/staticcheck"
	"honnef.co/go/tools/stylecheck"

	"github.com/gostaticanalysis/forcetypeassert"
	"github.com/gostaticanalysis/nilerr"

	"github.com/vshulcz/prefect-exporter/cmd/staticlint/globalregistry"
	"github.com/vshulcz/prefect-exporter/internal/misc"
)

// vetPasses are the x/tools passes that matter for a long-running network
// service: context leaks, lock copies, response bodies and signal channels.
var vetPasses = []*analysis.Analyzer{
	assign.Analyzer,
	atomic.Analyzer,
	bools.Analyzer,
	copylock.Analyzer,
	defers.Analyzer,
	errorsas.Analyzer,
	httpresponse.Analyzer,
	ifaceassert.Analyzer,
	lostcancel.Analyzer,
	nilfunc.Analyzer,
	nilness.Analyzer,
	printf.Analyzer,
	shadow.Analyzer,
	sigchanyzer.Analyzer,
	stdmethods.Analyzer,
	stringintconv.Analyzer,
	structtag.Analyzer,
	tests.Analyzer,
	timeformat.Analyzer,
	unmarshal.Analyzer,
	unreachable.Analyzer,
	unusedresult.Analyzer,
}

func main() {
	checks := append([]*analysis.Analyzer(nil), vetPasses...)
	checks = append(checks, pick(staticcheck.Analyzers, func(name string) bool {
		return strings.HasPrefix(name, "SA")
	})...)
	checks = append(checks, pick(stylecheck.Analyzers, func(name string) bool {
		return name == "ST1000"
	})...)
	checks = append(checks, nilerr.Analyzer, forcetypeassert.Analyzer, globalregistry.Analyzer)

	multichecker.Main(filterAnalyzers(checks, misc.SplitList(os.Getenv("STATICLINT_DISABLE")))...)
}

// pick returns the analyzers of a staticcheck suite whose names satisfy keep.
func pick(suite []*lint.Analyzer, keep func(name string) bool) []*analysis.Analyzer {
	var out []*analysis.Analyzer
	for _, la := range suite {
		if la == nil || la.Analyzer == nil || !keep(la.Analyzer.Name) {
			continue
		}
		out = append(out, la.Analyzer)
	}
	return out
}

// filterAnalyzers drops nil entries, repeated names and the disabled names.
func filterAnalyzers(analyzers []*analysis.Analyzer, disabled []string) []*analysis.Analyzer {
	skip := make(map[string]struct{}, len(analyzers)+len(disabled))
	for _, name := range disabled {
		skip[name] = struct{}{}
	}
	var filtered []*analysis.Analyzer
	for _, a := range analyzers {
		if a == nil {
			continue
		}
		if _, ok := skip[a.Name]; ok {
			continue
		}
		skip[a.Name] = struct{}{}
		filtered = append(filtered, a)
	}
	return filtered
}
