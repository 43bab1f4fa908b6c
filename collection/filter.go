// Package collection implements lazy, hierarchical dataset collections
// over backing storage, starting with filesystem directory trees.
package collection

import (
	"fmt"

	goeval "github.com/edisonguo/govaluate"
)

// parseFilterExpression compiles a member filter. Valid variables are
// "path", "name" and "type" ("grid", "table" or "collection"); anything
// else is rejected at compile time.
func parseFilterExpression(filter string) (*goeval.EvaluableExpression, error) {
	if len(filter) == 0 {
		return nil, nil
	}

	expr, err := goeval.NewEvaluableExpression(filter)
	if err != nil {
		return nil, err
	}

	validVariables := map[string]struct{}{"path": {}, "name": {}, "type": {}}
	for _, token := range expr.Tokens() {
		if token.Kind == goeval.VARIABLE {
			varName, ok := token.Value.(string)
			if !ok {
				return nil, fmt.Errorf("variable token '%v' failed to cast string", token.Value)
			}
			if _, found := validVariables[varName]; !found {
				return nil, fmt.Errorf("variable %v is not supported. Valid variables are %v", varName, []string{"path", "name", "type"})
			}
		}
	}
	return expr, nil
}

func evaluateFilter(expr *goeval.EvaluableExpression, path, name, kind string) (bool, error) {
	if expr == nil {
		return true, nil
	}
	parameters := map[string]interface{}{
		"path": path,
		"name": name,
		"type": kind,
	}
	result, err := expr.Evaluate(parameters)
	if err != nil {
		return false, err
	}
	match, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("filter expression did not evaluate to a boolean")
	}
	return match, nil
}
