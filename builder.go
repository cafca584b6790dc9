package metrics

import (
	"reflect"
)

// Described is implemented by a user object to supply the class-level
// binding that Java's `@Metrics(name, about, context)` annotation
// carried (spec.md §4.6 step 2). It is optional; a struct name is used
// as a fallback.
type Described interface {
	MetricsInfo() (name, about, context string)
}

// MethodMetric is one method-backed gauge binding: Func is sampled at
// every snapshot and its result recorded under Info as Kind (spec.md
// §4.6 step 4 - Java's method-level `@Metric` annotation). Kind must be
// one of the Gauge* kinds.
type MethodMetric struct {
	Info *MetricInfo
	Kind MetricValueKind
	Func func() float64
}

// MethodMetricSource is implemented by a user object that exposes
// method-backed gauges. There is no Go equivalent of annotating a
// method, so the binding is declared explicitly instead of discovered
// by reflection.
type MethodMetricSource interface {
	MetricMethods() []MethodMetric
}

var registryType = reflect.TypeOf((*Registry)(nil))

// BuildSource turns a declaratively-bound user object into a Source,
// implementing the introspector algorithm from spec.md §4.6. obj must
// be a pointer to a struct.
//
// Field binding: an exported field tagged `metric:"name,kind"` (kind
// one of counter-int, counter-long, gauge-int, gauge-long, gauge-float,
// gauge-double, stat) and of the matching handle type (Counter, Gauge,
// or Stat) is instantiated fresh and assigned back to the field when
// the field is currently the zero value. Method binding uses
// MethodMetricSource rather than reflection over methods, since Go has
// no method-level tag mechanism.
//
// Grounded on the teacher's memoized.go, which type-switches a
// caller-supplied value into the matching sync.Map-backed metric kind;
// BuildSource generalizes that type-directed construction from runtime
// type-switching to struct-tag-directed construction, and replaces
// Java's `@Metrics`/`@Metric` annotations per the REDESIGN FLAGS in
// spec.md §9.
func BuildSource(obj any) (Source, *MetricInfo, error) {
	v := reflect.ValueOf(obj)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return nil, nil, wrapf(ErrNoMetricAnnotation, "BuildSource requires a pointer to a struct, got %T", obj)
	}
	elem := v.Elem()
	typeName := elem.Type().Name()

	regField, regFieldFound := findRegistry(elem)
	var reg *Registry
	hasRegistry := false
	if regFieldFound && !regField.IsNil() {
		reg = regField.Interface().(*Registry)
		hasRegistry = true
	}

	name, about, context := typeName, typeName, ""
	if d, ok := obj.(Described); ok {
		n, a, c := d.MetricsInfo()
		if n != "" {
			name = n
		}
		if a != "" {
			about = a
		}
		context = c
	}
	info := Info(name, about)

	if !hasRegistry {
		reg = NewRegistry(info)
	}
	if context != "" {
		reg.SetContext(context)
	}
	if regFieldFound && regField.IsNil() {
		regField.Set(reflect.ValueOf(reg))
	}

	hasAnnotation := false

	if err := bindFields(elem, reg, &hasAnnotation); err != nil {
		return nil, nil, err
	}

	if mms, ok := obj.(MethodMetricSource); ok {
		for _, mm := range mms.MetricMethods() {
			g := newFuncGauge(mm.Info, mm.Kind, mm.Func)
			if err := reg.add(mm.Info.Name, g); err != nil {
				return nil, nil, err
			}
			hasAnnotation = true
		}
	}

	if src, ok := obj.(Source); ok {
		if hasAnnotation && !regFieldFound {
			return nil, nil, wrapf(ErrHybridWithoutRegistry, "%s", typeName)
		}
		return src, info, nil
	}

	if !hasAnnotation {
		return nil, nil, wrapf(ErrNoMetricAnnotation, "%s", typeName)
	}

	return SourceFunc(func(c *Collector, all bool) error {
		b := c.AddRecord(info)
		reg.Snapshot(b, all)
		return nil
	}), info, nil
}

// findRegistry looks for an exported field of type *Registry, searching
// into anonymous embedded structs, mirroring "a field of registry type,
// including inherited" from spec.md §4.6 step 1. It returns the field
// itself (addressable, possibly nil) so the caller can populate it when
// no registry existed yet.
func findRegistry(v reflect.Value) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		fv := v.Field(i)
		if f.Type == registryType && f.PkgPath == "" {
			return fv, true
		}
		if f.Anonymous && fv.Kind() == reflect.Struct {
			if regField, ok := findRegistry(fv); ok {
				return regField, true
			}
		}
		if f.Anonymous && fv.Kind() == reflect.Ptr && !fv.IsNil() && fv.Elem().Kind() == reflect.Struct {
			if regField, ok := findRegistry(fv.Elem()); ok {
				return regField, true
			}
		}
	}
	return reflect.Value{}, false
}

// bindFields walks v's exported fields (recursing into anonymous
// embedded structs), binding every `metric:"..."` tagged field whose
// current value is the zero value (spec.md §4.6 step 3).
func bindFields(v reflect.Value, reg *Registry, hasAnnotation *bool) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		fv := v.Field(i)

		if f.Anonymous && fv.Kind() == reflect.Struct {
			if err := bindFields(fv, reg, hasAnnotation); err != nil {
				return err
			}
			continue
		}

		tag, ok := f.Tag.Lookup("metric")
		if !ok || f.PkgPath != "" {
			continue
		}
		name, kind, err := parseMetricTag(tag, f.Name)
		if err != nil {
			return err
		}
		if !fv.IsZero() {
			*hasAnnotation = true
			continue
		}
		info := Info(name, name)
		switch kind {
		case CounterInt, CounterLong:
			c, err := reg.NewCounter(info, kind, 0)
			if err != nil {
				return err
			}
			if f.Type != reflect.TypeOf(Counter{}) {
				return wrapf(ErrConfig, "field %s tagged counter but has type %s", f.Name, f.Type)
			}
			fv.Set(reflect.ValueOf(c))
		case GaugeInt, GaugeLong, GaugeFloat, GaugeDouble:
			g, err := reg.NewGauge(info, kind, 0)
			if err != nil {
				return err
			}
			if f.Type != reflect.TypeOf(Gauge{}) {
				return wrapf(ErrConfig, "field %s tagged gauge but has type %s", f.Name, f.Type)
			}
			fv.Set(reflect.ValueOf(g))
		case StatKind:
			s, err := reg.NewStat(info, StatOpts{})
			if err != nil {
				return err
			}
			if f.Type != reflect.TypeOf(Stat{}) {
				return wrapf(ErrConfig, "field %s tagged stat but has type %s", f.Name, f.Type)
			}
			fv.Set(reflect.ValueOf(s))
		}
		*hasAnnotation = true
	}
	return nil
}

var metricTagKinds = map[string]MetricValueKind{
	"counter-int":    CounterInt,
	"counter-long":   CounterLong,
	"gauge-int":      GaugeInt,
	"gauge-long":     GaugeLong,
	"gauge-float":    GaugeFloat,
	"gauge-double":   GaugeDouble,
	"stat":           StatKind,
}

// parseMetricTag parses a `metric:"name,kind"` struct tag; name
// defaults to fieldName when the tag omits it (spec.md §4.6: "else the
// field name").
func parseMetricTag(tag, fieldName string) (string, MetricValueKind, error) {
	name := fieldName
	kindStr := tag
	for i := 0; i < len(tag); i++ {
		if tag[i] == ',' {
			if i > 0 {
				name = tag[:i]
			}
			kindStr = tag[i+1:]
			break
		}
	}
	kind, ok := metricTagKinds[kindStr]
	if !ok {
		return "", 0, wrapf(ErrConfig, "unrecognized metric tag kind %q on field %s", kindStr, fieldName)
	}
	return name, kind, nil
}

// funcGauge is a read-only, method-backed gauge: its value is produced
// by invoking fn at every snapshot rather than by atomic state it owns
// (spec.md §4.6 step 4). It always emits, since there is no mutation to
// track independent of the call itself.
type funcGauge struct {
	info *MetricInfo
	kind MetricValueKind
	fn   func() float64
}

func newFuncGauge(info *MetricInfo, kind MetricValueKind, fn func() float64) *funcGauge {
	return &funcGauge{info: info, kind: kind, fn: fn}
}

func (g *funcGauge) Info() *MetricInfo     { return g.info }
func (g *funcGauge) Kind() MetricValueKind { return g.kind }

func (g *funcGauge) Snapshot(b *RecordBuilder, all bool) {
	v := g.fn()
	switch g.kind {
	case GaugeInt:
		b.Add(newGaugeIntMetric(g.info, int32(v)))
	case GaugeLong:
		b.Add(newGaugeLongMetric(g.info, int64(v)))
	case GaugeFloat:
		b.Add(newGaugeFloatMetric(g.info, float32(v)))
	default:
		b.Add(newGaugeDoubleMetric(g.info, v))
	}
}
