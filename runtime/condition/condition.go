// Package condition implements the restricted boolean/arithmetic sandbox
// used by the conditional step. It deliberately does not expose the full
// expr-lang grammar or any path into the run's artifacts: only the
// whitelisted predicate functions and literal comparison/arithmetic are
// reachable, so a condition string can never read or leak context data it
// wasn't explicitly handed.
package condition

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// expr-lang's lexer reserves "and"/"or"/"not" as operator keywords (the same
// tokens the teacher's evaluator leans on for native `&&`/`||`/`!`), so a
// whitelisted env function registered under those names is never reachable
// by a call expression: expr.Compile("and(true, ...)") fails to parse before
// it ever resolves the identifier. combinatorCallPattern rewrites the
// function-call spelling a condition author writes into the underscore-
// prefixed names the env actually exposes, so "and(...)"/"or(...)"/"not(...)"
// keep working as callable primitives instead of only coincidentally
// matching native-operator behavior.
var combinatorCallPattern = regexp.MustCompile(`\b(and|or|not)\s*\(`)

func translateCombinatorCalls(s string) string {
	return combinatorCallPattern.ReplaceAllString(s, "_$1(")
}

var whitelistedEnv = map[string]any{
	"_and": func(vals ...bool) bool {
		for _, v := range vals {
			if !v {
				return false
			}
		}
		return true
	},
	"_or": func(vals ...bool) bool {
		for _, v := range vals {
			if v {
				return true
			}
		}
		return false
	},
	"_not": func(v bool) bool { return !v },
	"file_exists": func(path string) bool {
		_, err := os.Stat(path)
		return err == nil
	},
	// paths is []any, not []string: expr hands a list literal over as
	// []interface{}, which cannot be reflect-assigned to a []string param.
	"all_files_exist": func(paths []any) bool {
		for _, p := range paths {
			path, ok := p.(string)
			if !ok {
				return false
			}
			if _, err := os.Stat(path); err != nil {
				return false
			}
		}
		return true
	},
	"file_is_newer": func(a, b string) bool {
		infoA, errA := os.Stat(a)
		infoB, errB := os.Stat(b)
		if errA != nil || errB != nil {
			return false
		}
		return infoA.ModTime().After(infoB.ModTime())
	},
}

var (
	compileCacheMu sync.Mutex
	compileCache   = map[string]*vm.Program{}
)

// Evaluate renders the already-template-expanded condition string through
// the restricted sandbox and returns its boolean result. The empty string
// and the literal strings "true"/"false" (case-insensitive, surrounding
// whitespace trimmed) short-circuit directly without reaching the
// expression engine, exactly as a rendered boolean config value would.
func Evaluate(rendered string) (bool, error) {
	trimmed := strings.TrimSpace(rendered)
	switch strings.ToLower(trimmed) {
	case "":
		return false, nil
	case "true":
		return true, nil
	case "false":
		return false, nil
	}

	source := translateCombinatorCalls(trimmed)

	compileCacheMu.Lock()
	program, ok := compileCache[source]
	compileCacheMu.Unlock()
	if !ok {
		var err error
		program, err = expr.Compile(source, expr.Env(whitelistedEnv))
		if err != nil {
			return false, fmt.Errorf("compile condition %q: %w", trimmed, err)
		}
		compileCacheMu.Lock()
		compileCache[source] = program
		compileCacheMu.Unlock()
	}

	out, err := expr.Run(program, whitelistedEnv)
	if err != nil {
		return false, fmt.Errorf("evaluate condition %q: %w", trimmed, err)
	}

	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("condition %q did not evaluate to a boolean, got %T", trimmed, out)
	}
	return b, nil
}
