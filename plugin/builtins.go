package plugin

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/flexigpt/lime-go/execmodel"
	"github.com/flexigpt/lime-go/spec"
)

// Builtins returns a fresh copy of the builtin module catalog: math, strings and json.
func Builtins() map[string]Module {
	return map[string]Module{
		"math":    mathModule(),
		"strings": stringsModule(),
		"json":    jsonModule(),
	}
}

func mathModule() Module {
	unary := func(f func(float64) float64) func(any) (float64, error) {
		return func(x any) (float64, error) {
			v, err := toFloat(x)
			if err != nil {
				return 0, err
			}
			return f(v), nil
		}
	}
	return Module{
		"pi":    math.Pi,
		"e":     math.E,
		"sqrt":  unary(math.Sqrt),
		"floor": unary(math.Floor),
		"ceil":  unary(math.Ceil),
		"fabs":  unary(math.Abs),
		"log":   unary(math.Log),
		"exp":   unary(math.Exp),
		"pow": func(x, y any) (float64, error) {
			a, err := toFloat(x)
			if err != nil {
				return 0, err
			}
			b, err := toFloat(y)
			if err != nil {
				return 0, err
			}
			return math.Pow(a, b), nil
		},
	}
}

func stringsModule() Module {
	title := cases.Title(language.Und)
	return Module{
		"upper": strings.ToUpper,
		"lower": strings.ToLower,
		"title": func(s string) string { return title.String(s) },
		"strip": strings.TrimSpace,
		"split": func(s, sep string) []any {
			var out []any
			if sep == "" {
				for _, f := range strings.Fields(s) {
					out = append(out, f)
				}
				return out
			}
			for _, p := range strings.Split(s, sep) {
				out = append(out, p)
			}
			return out
		},
		"join": func(sep string, items []any) string {
			parts := make([]string, 0, len(items))
			for _, it := range items {
				parts = append(parts, execmodel.Stringify(it))
			}
			return strings.Join(parts, sep)
		},
		"replace":    strings.ReplaceAll,
		"startswith": strings.HasPrefix,
		"endswith":   strings.HasSuffix,
	}
}

func jsonModule() Module {
	return Module{
		"dumps": func(v any) (string, error) {
			b, err := json.Marshal(v)
			if err != nil {
				return "", err
			}
			return string(b), nil
		},
		"loads": execmodel.DecodeJSONLiteral,
	}
}

func toFloat(x any) (float64, error) {
	switch v := x.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, errors.Wrapf(spec.ErrInvalidArgument, "not a number: %q", v)
		}
		return f, nil
	default:
		return 0, errors.Wrapf(spec.ErrInvalidArgument, "not a number: %T", x)
	}
}
