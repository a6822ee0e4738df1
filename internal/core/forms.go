package core

// forms.go derives edit forms from record type descriptors.
//
// Control selection, first match wins:
//
//	primary key   -> readonly
//	foreign key   -> select over the target's records, labeled by Display
//	enum          -> select over the members
//	string        -> text
//	integer       -> number, step 1
//	decimal       -> number, step 10^-scale
//	date          -> date
//	bool          -> toggle
//	anything else -> unsupported

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Control is the kind of input widget a field renders as.
type Control string

const (
	ControlReadOnly    Control = "readonly"
	ControlSelect      Control = "select"
	ControlText        Control = "text"
	ControlNumber      Control = "number"
	ControlDate        Control = "date"
	ControlToggle      Control = "toggle"
	ControlUnsupported Control = "unsupported"
)

// Option is one choice of a select input.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Input describes one form field.
type Input struct {
	Field    string   `json:"field"`
	Label    string   `json:"label"`
	Kind     string   `json:"kind"`
	Control  Control  `json:"control"`
	ReadOnly bool     `json:"readOnly,omitempty"`
	Required bool     `json:"required,omitempty"`
	Value    string   `json:"value"`
	Options  []Option `json:"options,omitempty"`
	Step     string   `json:"step,omitempty"`
}

// Form is the synthesized edit form of a record type.
type Form struct {
	Type    string  `json:"type"`
	Label   string  `json:"label"`
	Editing bool    `json:"editing"` // current record supplied
	Inputs  []Input `json:"inputs"`
}

// Input returns the named input.
func (f *Form) Input(name string) (Input, bool) {
	for _, in := range f.Inputs {
		if in.Field == name {
			return in, true
		}
	}
	return Input{}, false
}

// Synthesizer builds forms from the registry, loading foreign key choices
// from the store.
type Synthesizer struct {
	registry *Registry
	store    Store
}

// NewSynthesizer creates a Synthesizer.
func NewSynthesizer(reg *Registry, store Store) *Synthesizer {
	return &Synthesizer{registry: reg, store: store}
}

// Form builds the form of typeName, prefilled from current when non-nil.
func (s *Synthesizer) Form(ctx context.Context, typeName string, current Record) (*Form, error) {
	rt, err := s.registry.Lookup(typeName)
	if err != nil {
		return nil, err
	}

	form := &Form{
		Type:    rt.Name,
		Label:   rt.Label,
		Editing: current != nil,
		Inputs:  make([]Input, len(rt.Fields)),
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, f := range rt.Fields {
		in := Input{
			Field:    f.Name,
			Label:    f.DisplayLabel(),
			Kind:     f.Kind.String(),
			Control:  ControlFor(f),
			Required: f.Required() && !f.PrimaryKey,
		}
		in.ReadOnly = in.Control == ControlReadOnly
		if current != nil && !f.Sensitive {
			in.Value = FormatValue(f, current[f.Name])
		}

		switch in.Control {
		case ControlNumber:
			in.Step = Step(f)
		case ControlToggle:
			if in.Value == "" {
				in.Value = "false"
			}
		case ControlSelect:
			if f.Kind == KindEnum {
				in.Options = enumOptions(f)
				break
			}
			form.Inputs[i] = in
			idx, field := i, f
			g.Go(func() error {
				opts, err := s.referenceOptions(gctx, field)
				if err != nil {
					return fmt.Errorf("load %s options: %w", field.Name, err)
				}
				form.Inputs[idx].Options = opts
				return nil
			})
			continue
		}
		form.Inputs[i] = in
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return form, nil
}

// ControlFor picks the input control of f.
func ControlFor(f Field) Control {
	switch {
	case f.PrimaryKey:
		return ControlReadOnly
	case f.Kind == KindForeignKey, f.Kind == KindEnum:
		return ControlSelect
	case f.Kind == KindString:
		return ControlText
	case f.Kind == KindInteger, f.Kind == KindDecimal:
		return ControlNumber
	case f.Kind == KindDate:
		return ControlDate
	case f.Kind == KindBool:
		return ControlToggle
	default:
		return ControlUnsupported
	}
}

// Step returns the numeric step of a number input: "1" for integers,
// "0.01" for a decimal of scale 2.
func Step(f Field) string {
	if f.Kind != KindDecimal || f.Scale <= 0 {
		return "1"
	}
	return decimal.New(1, -int32(f.Scale)).StringFixed(int32(f.Scale))
}

func enumOptions(f Field) []Option {
	opts := make([]Option, 0, len(f.EnumValues)+1)
	if f.Nullable {
		opts = append(opts, Option{})
	}
	for _, v := range f.EnumValues {
		opts = append(opts, Option{Value: v, Label: v})
	}
	return opts
}

func (s *Synthesizer) referenceOptions(ctx context.Context, f Field) ([]Option, error) {
	target, err := s.registry.Lookup(f.References)
	if err != nil {
		return nil, err
	}
	recs, err := s.store.List(ctx, target, ListOptions{})
	if err != nil {
		return nil, err
	}
	opts := make([]Option, 0, len(recs)+1)
	if f.Nullable {
		opts = append(opts, Option{})
	}
	for _, rec := range recs {
		opts = append(opts, Option{
			Value: fmt.Sprint(target.ID(rec)),
			Label: DisplayContext(ctx, s.registry, s.store, target, rec),
		})
	}
	return opts, nil
}

// Capture turns submitted form values into a typed candidate record without
// touching the store. Read-only and unsupported inputs carry the form's
// current value. Select values must be one of the offered options, an
// unchecked toggle is false, and decimals are quantized to the field's scale.
// A blank sensitive input on an edit form is left out so the stored value
// stays.
func (s *Synthesizer) Capture(form *Form, submitted map[string]any) (Record, error) {
	rt, err := s.registry.Lookup(form.Type)
	if err != nil {
		return nil, err
	}

	rec := make(Record, len(form.Inputs))
	var errs ValidationErrors
	for _, in := range form.Inputs {
		f, ok := rt.Field(in.Field)
		if !ok {
			continue
		}

		var v any
		switch {
		case in.ReadOnly || in.Control == ControlUnsupported:
			if in.Value == "" {
				continue
			}
			v = in.Value
		case in.Control == ControlToggle:
			sv, present := submitted[in.Field]
			b, err := ToBool(sv)
			rec[f.Name] = present && err == nil && b
			continue
		default:
			sv, present := submitted[in.Field]
			if !present {
				continue
			}
			if isBlank(sv) && f.Sensitive && form.Editing {
				continue
			}
			v = sv
		}

		if in.Control == ControlSelect && !isBlank(v) && !offered(in.Options, v) {
			errs = append(errs, ValidationError{
				Field:   f.Name,
				Value:   fmt.Sprint(v),
				Message: "invalid enum: value is not one of the offered options",
			})
			continue
		}

		cv, err := Coerce(f, v)
		if err != nil {
			errs = append(errs, ValidationError{Field: f.Name, Value: fmt.Sprint(v), Message: err.Error()})
			continue
		}
		rec[f.Name] = cv
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return rec, nil
}

func offered(opts []Option, v any) bool {
	s := strings.TrimSpace(fmt.Sprint(v))
	for _, o := range opts {
		if o.Value != "" && strings.EqualFold(o.Value, s) {
			return true
		}
	}
	return false
}
