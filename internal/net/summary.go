package net

import (
	"fmt"
	"io"
	"strings"

	"github.com/FlavioCFOliveira/neurocore/internal/layer"
	"github.com/FlavioCFOliveira/neurocore/internal/param"
)

const summaryRule = "_________________________________________________________________"

// Summary writes a table of the network architecture to w.
func (n *Network) Summary(w io.Writer) error {
	var b strings.Builder
	b.WriteString("Model: Sequential\n")
	b.WriteString(summaryRule + "\n")
	fmt.Fprintf(&b, "%-25s %-20s %-10s\n", "Layer (type)", "Output Shape", "Param #")
	b.WriteString(strings.Repeat("=", len(summaryRule)) + "\n")

	for i, l := range n.layers {
		fmt.Fprintf(&b, "%-25s %-20s %-10d\n",
			fmt.Sprintf("%s_%d", layerName(l), i),
			fmt.Sprintf("(%d)", l.OutSize()),
			param.Count(l.Parameters()))
	}
	b.WriteString(strings.Repeat("=", len(summaryRule)) + "\n")
	fmt.Fprintf(&b, "Total params: %d\n", n.NumParams())
	b.WriteString(summaryRule + "\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func layerName(l layer.Layer) string {
	switch v := l.(type) {
	case *layer.Dense:
		return "Dense"
	case *layer.Activation:
		return v.Kind().String()
	case *layer.Softmax:
		return "Softmax"
	case *layer.Neurons:
		return "Neurons(" + v.Kind().String() + ")"
	}
	name := fmt.Sprintf("%T", l)
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return name
}
