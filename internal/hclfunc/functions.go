// Package hclfunc provides the evaluation context environment
// definitions are decoded with: the function set callable from HCL
// expressions plus variable exposure under the var namespace.
package hclfunc

import (
	"os"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

// EnvFunc reads an environment variable, returning "" when unset.
//
//	password = env("SHOP_DB_PASSWORD")
func EnvFunc() function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{
			{Name: "varname", Type: cty.String},
		},
		Type: function.StaticReturnType(cty.String),
		Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
			return cty.StringVal(os.Getenv(args[0].AsString())), nil
		},
	})
}

// LowerFunc converts a string to lowercase.
func LowerFunc() function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{
			{Name: "str", Type: cty.String},
		},
		Type: function.StaticReturnType(cty.String),
		Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
			return cty.StringVal(strings.ToLower(args[0].AsString())), nil
		},
	})
}

// UpperFunc converts a string to uppercase.
func UpperFunc() function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{
			{Name: "str", Type: cty.String},
		},
		Type: function.StaticReturnType(cty.String),
		Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
			return cty.StringVal(strings.ToUpper(args[0].AsString())), nil
		},
	})
}

// ConcatFunc concatenates its string arguments, skipping nulls.
//
//	fqdn = concat(var.service, ".", var.domain)
func ConcatFunc() function.Function {
	return function.New(&function.Spec{
		VarParam: &function.Parameter{
			Name: "values",
			Type: cty.String,
		},
		Type: function.StaticReturnType(cty.String),
		Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
			var builder strings.Builder
			for _, arg := range args {
				if arg.IsNull() {
					continue
				}
				builder.WriteString(arg.AsString())
			}
			return cty.StringVal(builder.String()), nil
		},
	})
}

// Functions returns the function set available to environment
// definitions.
func Functions() map[string]function.Function {
	return map[string]function.Function{
		"env":    EnvFunc(),
		"lower":  LowerFunc(),
		"upper":  UpperFunc(),
		"concat": ConcatFunc(),
	}
}
