package hclfunc

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// NewEvalContext creates an evaluation context carrying the hclfunc
// function set. When variables are given they are exposed under the
// var namespace, so var.db_password resolves in expressions. Pass nil
// for a function-only context.
func NewEvalContext(variables map[string]string) *hcl.EvalContext {
	if len(variables) == 0 {
		return &hcl.EvalContext{
			Functions: Functions(),
		}
	}
	return NewEvalContextWithVars(variables)
}

// NewEvalContextWithVars creates an evaluation context with the given
// variables exposed under the var namespace.
func NewEvalContextWithVars(variables map[string]string) *hcl.EvalContext {
	varMap := make(map[string]cty.Value)
	for k, v := range variables {
		varMap[k] = cty.StringVal(v)
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"var": cty.ObjectVal(varMap),
		},
		Functions: Functions(),
	}
}
