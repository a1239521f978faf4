package tool

import (
	"context"
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"math"
	"strconv"

	"github.com/google/jsonschema-go/jsonschema"
)

// CalculatorName is the name the calculator tool is registered under.
const CalculatorName = "calculator"

var errDivisionByZero = errors.New("division by zero")

var unaryFuncs = map[string]func(float64) float64{
	"sqrt":  math.Sqrt,
	"abs":   math.Abs,
	"floor": math.Floor,
	"ceil":  math.Ceil,
	"round": math.Round,
	"exp":   math.Exp,
	"ln":    math.Log,
	"log10": math.Log10,
	"sin":   math.Sin,
	"cos":   math.Cos,
	"tan":   math.Tan,
}

var constants = map[string]float64{
	"pi": math.Pi,
	"e":  math.E,
}

// NewCalculator returns a tool that evaluates arithmetic expressions such as
// "(3 + 4) * pow(2, 10) / sqrt(16)".
func NewCalculator() *FunctionTool {
	return NewFunctionTool(
		CalculatorName,
		"Evaluates an arithmetic expression and returns the number. Supports + - * / %, parentheses, "+
			"pow(x, y), sqrt, abs, floor, ceil, round, exp, ln, log10, sin, cos, tan and the constants pi and e.",
		&jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"expression": {Type: "string", Description: "The expression to evaluate, e.g. \"2 * (3 + 4)\"."},
			},
			Required: []string{"expression"},
		},
		func(_ context.Context, args map[string]any) (any, error) {
			expr, _ := args["expression"].(string)
			return Evaluate(expr)
		},
	)
}

// Evaluate computes the value of an arithmetic expression.
func Evaluate(expr string) (float64, error) {
	node, err := parser.ParseExpr(expr)
	if err != nil {
		return 0, fmt.Errorf("invalid expression %q: %w", expr, err)
	}
	v, err := eval(node)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("expression %q has no finite value", expr)
	}
	return v, nil
}

func eval(n ast.Expr) (float64, error) {
	switch n := n.(type) {
	case *ast.BasicLit:
		if n.Kind != token.INT && n.Kind != token.FLOAT {
			return 0, fmt.Errorf("unsupported literal %s", n.Value)
		}
		return strconv.ParseFloat(n.Value, 64)
	case *ast.Ident:
		if v, ok := constants[n.Name]; ok {
			return v, nil
		}
		return 0, fmt.Errorf("unknown identifier %q", n.Name)
	case *ast.ParenExpr:
		return eval(n.X)
	case *ast.UnaryExpr:
		x, err := eval(n.X)
		if err != nil {
			return 0, err
		}
		switch n.Op {
		case token.ADD:
			return x, nil
		case token.SUB:
			return -x, nil
		}
		return 0, fmt.Errorf("unsupported operator %s", n.Op)
	case *ast.BinaryExpr:
		x, err := eval(n.X)
		if err != nil {
			return 0, err
		}
		y, err := eval(n.Y)
		if err != nil {
			return 0, err
		}
		return binary(n.Op, x, y)
	case *ast.CallExpr:
		return call(n)
	}
	return 0, fmt.Errorf("unsupported expression %T", n)
}

func binary(op token.Token, x, y float64) (float64, error) {
	switch op {
	case token.ADD:
		return x + y, nil
	case token.SUB:
		return x - y, nil
	case token.MUL:
		return x * y, nil
	case token.QUO:
		if y == 0 {
			return 0, errDivisionByZero
		}
		return x / y, nil
	case token.REM:
		if y == 0 {
			return 0, errDivisionByZero
		}
		return math.Mod(x, y), nil
	}
	// ^ is XOR in Go's grammar and binds like +, so it is rejected rather
	// than silently misread as a power.
	return 0, fmt.Errorf("unsupported operator %s", op)
}

func call(n *ast.CallExpr) (float64, error) {
	ident, ok := n.Fun.(*ast.Ident)
	if !ok {
		return 0, errors.New("unsupported function call")
	}

	args := make([]float64, len(n.Args))
	for i, a := range n.Args {
		v, err := eval(a)
		if err != nil {
			return 0, err
		}
		args[i] = v
	}

	if ident.Name == "pow" {
		if len(args) != 2 {
			return 0, fmt.Errorf("pow takes 2 arguments, got %d", len(args))
		}
		return math.Pow(args[0], args[1]), nil
	}

	fn, ok := unaryFuncs[ident.Name]
	if !ok {
		return 0, fmt.Errorf("unknown function %q", ident.Name)
	}
	if len(args) != 1 {
		return 0, fmt.Errorf("%s takes 1 argument, got %d", ident.Name, len(args))
	}
	return fn(args[0]), nil
}
