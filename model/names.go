package model

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Enums are stored by name so saved projects stay readable.

func lookupName(names []string, s string) (int, bool) {
	for i, n := range names {
		if n == s {
			return i, true
		}
	}
	return 0, false
}

func decodeName(node *yaml.Node, names []string, what string) (int, error) {
	var s string
	if err := node.Decode(&s); err != nil {
		return 0, err
	}
	i, ok := lookupName(names, s)
	if !ok {
		return 0, fmt.Errorf("line %d: unknown %s %q", node.Line, what, s)
	}
	return i, nil
}

func (o Operator) MarshalYAML() (any, error) { return o.String(), nil }

func (o *Operator) UnmarshalYAML(node *yaml.Node) error {
	i, err := decodeName(node, operatorNames, "operator")
	if err != nil {
		return err
	}
	*o = Operator(i)
	return nil
}

func (c Comparison) MarshalYAML() (any, error) { return c.String(), nil }

func (c *Comparison) UnmarshalYAML(node *yaml.Node) error {
	i, err := decodeName(node, comparisonNames, "comparison")
	if err != nil {
		return err
	}
	*c = Comparison(i)
	return nil
}

func (d Division) MarshalYAML() (any, error) { return d.String(), nil }

func (d *Division) UnmarshalYAML(node *yaml.Node) error {
	i, err := decodeName(node, divisionNames, "division")
	if err != nil {
		return err
	}
	*d = Division(i)
	return nil
}
