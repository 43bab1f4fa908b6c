package derive

import (
	"fmt"

	goeval "github.com/edisonguo/govaluate"
	"github.com/nci/gridset/dataset"
)

// FromExpression compiles a textual cell expression into a Function, for
// callers migrating derivations that used to be specified as expression
// strings. The engine itself only ever sees Function values; a compiled
// function is indistinguishable from a native one. vars names the
// expression variables in input-grid order and doubles as a whitelist: any
// other variable in the expression is rejected here, at compile time.
func FromExpression(expr string, vars []string, output dataset.Dtype, outputNoData float64) (Function, error) {
	if len(vars) == 0 {
		return Function{}, fmt.Errorf("expression %q has no input variables", expr)
	}

	evaluable, err := goeval.NewEvaluableExpression(expr)
	if err != nil {
		return Function{}, fmt.Errorf("parsing expression %q: %w", expr, err)
	}

	validVariables := make(map[string]int)
	for i, v := range vars {
		validVariables[v] = i
	}
	for _, token := range evaluable.Tokens() {
		if token.Kind == goeval.VARIABLE {
			varName, ok := token.Value.(string)
			if !ok {
				return Function{}, fmt.Errorf("variable token '%v' failed to cast string", token.Value)
			}
			if _, found := validVariables[varName]; !found {
				return Function{}, fmt.Errorf("variable %v is not supported. Valid variables are %v", varName, vars)
			}
		}
	}

	return Function{
		Name:         fmt.Sprintf("expr(%s)", expr),
		Arity:        len(vars),
		Output:       output,
		OutputNoData: outputNoData,
		Apply: func(args []float64) float64 {
			parameters := make(map[string]interface{}, len(vars))
			for i, v := range vars {
				parameters[v] = args[i]
			}
			result, err := evaluable.Evaluate(parameters)
			if err != nil {
				return outputNoData
			}
			val, ok := result.(float64)
			if !ok {
				return outputNoData
			}
			return val
		},
	}, nil
}
