// Package activations provides pointwise activation functions.
package activations

import (
	"fmt"
	"math"
	"strings"
)

// Kind selects an activation function.
type Kind int

const (
	Linear Kind = iota
	Sigmoid
	Tanh
	ReLU
	LeakyReLU
	ELU
	GELU
	Swish
	Softplus
)

// LeakySlope is the slope used by LeakyReLU for x <= 0.
const LeakySlope = 0.01

var names = [...]string{
	Linear:    "Linear",
	Sigmoid:   "Sigmoid",
	Tanh:      "Tanh",
	ReLU:      "ReLU",
	LeakyReLU: "LeakyReLU",
	ELU:       "ELU",
	GELU:      "GELU",
	Swish:     "Swish",
	Softplus:  "Softplus",
}

// String returns the canonical name of k.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(names) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return names[k]
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k >= 0 && int(k) < len(names)
}

// ParseKind parses an activation name, ignoring case.
func ParseKind(s string) (Kind, error) {
	for k, name := range names {
		if strings.EqualFold(name, s) {
			return Kind(k), nil
		}
	}
	return Linear, fmt.Errorf("unknown activation %q", s)
}

// IsReLUFamily reports whether k is piecewise linear-ish and benefits from He-style init.
func (k Kind) IsReLUFamily() bool {
	switch k {
	case ReLU, LeakyReLU, ELU, GELU, Swish:
		return true
	}
	return false
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid activation kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

const geluC = 0.044715

var sqrt2OverPi = math.Sqrt(2 / math.Pi)

// Activate computes f(z).
func (k Kind) Activate(z float64) float64 {
	switch k {
	case Sigmoid:
		return sigmoid(z)
	case Tanh:
		return math.Tanh(z)
	case ReLU:
		if z > 0 {
			return z
		}
		return 0
	case LeakyReLU:
		if z > 0 {
			return z
		}
		return LeakySlope * z
	case ELU:
		if z >= 0 {
			return z
		}
		return math.Exp(z) - 1
	case GELU:
		return 0.5 * z * (1 + math.Tanh(sqrt2OverPi*(z+geluC*z*z*z)))
	case Swish:
		return z * sigmoid(z)
	case Softplus:
		// Linear above 20 where log1p(exp(z)) == z in float64.
		if z > 20 {
			return z
		}
		return math.Log1p(math.Exp(z))
	default:
		return z
	}
}

// Derivative computes f'(z) given the pre-activation z and the output a = f(z).
// Each kind uses whichever of the two gives the cheapest exact form.
func (k Kind) Derivative(z, a float64) float64 {
	switch k {
	case Sigmoid:
		return a * (1 - a)
	case Tanh:
		return 1 - a*a
	case ReLU:
		if z > 0 {
			return 1
		}
		return 0
	case LeakyReLU:
		if z > 0 {
			return 1
		}
		return LeakySlope
	case ELU:
		if z >= 0 {
			return 1
		}
		return math.Exp(z)
	case GELU:
		u := sqrt2OverPi * (z + geluC*z*z*z)
		t := math.Tanh(u)
		du := sqrt2OverPi * (1 + 3*geluC*z*z)
		return 0.5*(1+t) + 0.5*z*(1-t*t)*du
	case Swish:
		s := sigmoid(z)
		return s + z*s*(1-s)
	case Softplus:
		return sigmoid(z)
	default:
		return 1
	}
}
