package config

import (
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/physic"
)

// Frequency reads and writes values such as "20kHz".
type Frequency struct{ physic.Frequency }

func (f Frequency) MarshalYAML() (interface{}, error) {
	return f.Frequency.String(), nil
}

func (f *Frequency) UnmarshalYAML(n *yaml.Node) error {
	if err := f.Frequency.Set(n.Value); err != nil {
		return errors.Wrapf(err, "line %d: frequency %q", n.Line, n.Value)
	}
	return nil
}

// Potential reads and writes values such as "3.307V".
type Potential struct{ physic.ElectricPotential }

func (p Potential) MarshalYAML() (interface{}, error) {
	return p.ElectricPotential.String(), nil
}

func (p *Potential) UnmarshalYAML(n *yaml.Node) error {
	if err := p.ElectricPotential.Set(n.Value); err != nil {
		return errors.Wrapf(err, "line %d: potential %q", n.Line, n.Value)
	}
	return nil
}
