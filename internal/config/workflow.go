package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"

	"github.com/nconklindev/geoshift/internal/converter"
	"github.com/nconklindev/geoshift/internal/crs"
	"github.com/nconklindev/geoshift/internal/geodesy"
)

// Workflow is a saved set of conversion options, loaded from YAML:
//
//	source_crs: EPSG:4326
//	target_crs: NZTM
//	x_column: Longitude
//	y_column: Latitude
//	drop_missing_rows: true
//	precision: 2
type Workflow struct {
	XColumn         string `yaml:"x_column" validate:"required_with=YColumn"`
	YColumn         string `yaml:"y_column" validate:"required_with=XColumn"`
	SourceCRS       string `yaml:"source_crs" validate:"required"`
	TargetCRS       string `yaml:"target_crs" validate:"required"`
	DropMissingRows bool   `yaml:"drop_missing_rows"`

	OutputX   string `yaml:"output_x"`
	OutputY   string `yaml:"output_y"`
	Overwrite bool   `yaml:"overwrite"`
	Precision int    `yaml:"precision" validate:"gte=0,lte=12"`
	Workers   int    `yaml:"workers" validate:"gte=0,lte=256"`
	Strict    bool   `yaml:"strict"`

	ExtraCRS []CRSDefinition `yaml:"extra_crs" validate:"dive"`
}

// CRSDefinition describes a custom system in a workflow file. A definition
// with a projection is treated as easting/northing, one without as
// longitude/latitude.
type CRSDefinition struct {
	Name       string                  `yaml:"name" validate:"required"`
	Code       string                  `yaml:"code" validate:"required"`
	Short      string                  `yaml:"short"`
	Datum      crs.Datum               `yaml:"datum"`
	Projection *crs.TransverseMercator `yaml:"projection"`
	AreaOfUse  crs.Bounds              `yaml:"area_of_use"`
}

// Definition converts the workflow entry to a registry definition.
func (c CRSDefinition) Definition() crs.Definition {
	short := c.Short
	if short == "" {
		short = c.Code
	}
	axes := crs.LonLat
	if c.Projection != nil {
		axes = crs.EastNorth
	}
	return crs.Definition{
		Name:       c.Name,
		Code:       c.Code,
		Short:      short,
		Axes:       axes,
		Datum:      c.Datum,
		Projection: c.Projection,
		AreaOfUse:  c.AreaOfUse,
	}
}

// ErrInvalidWorkflow is wrapped by every parse or validation failure.
var ErrInvalidWorkflow = errors.New("invalid workflow")

var validate = newValidator()

// newValidator reports fields by their YAML names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// LoadWorkflow reads and parses a workflow file.
func LoadWorkflow(path string) (*Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow: %w", err)
	}
	return ParseWorkflow(data)
}

// ParseWorkflow decodes YAML and checks field constraints. Fields not known
// to Workflow are rejected so that typos do not silently fall back to
// defaults.
func ParseWorkflow(data []byte) (*Workflow, error) {
	var w Workflow
	if err := yaml.UnmarshalStrict(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWorkflow, err)
	}
	if err := validate.Struct(&w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWorkflow, describeValidation(err))
	}
	return &w, nil
}

// Apply registers the extra systems in reg and then checks that both CRS
// identifiers resolve. Registration stops at the first failure.
func (w *Workflow) Apply(reg *crs.Registry) error {
	for _, c := range w.ExtraCRS {
		def := c.Definition()
		if _, err := geodesy.NewTransformer(&def, &def); err != nil {
			return fmt.Errorf("%w: extra_crs %s: %v", ErrInvalidWorkflow, c.Code, err)
		}
		if err := reg.Register(def); err != nil {
			return fmt.Errorf("%w: extra_crs %s: %v", ErrInvalidWorkflow, c.Code, err)
		}
	}

	if _, err := reg.Lookup(w.SourceCRS); err != nil {
		return &converter.ConfigurationError{Field: "source_crs", Value: w.SourceCRS, Err: err}
	}
	if _, err := reg.Lookup(w.TargetCRS); err != nil {
		return &converter.ConfigurationError{Field: "target_crs", Value: w.TargetCRS, Err: err}
	}
	return nil
}

// Options returns the converter options the workflow describes.
func (w *Workflow) Options() converter.Options {
	return converter.Options{
		XColumn:         w.XColumn,
		YColumn:         w.YColumn,
		SourceCRS:       w.SourceCRS,
		TargetCRS:       w.TargetCRS,
		DropMissingRows: w.DropMissingRows,
		OutputX:         w.OutputX,
		OutputY:         w.OutputY,
		Overwrite:       w.Overwrite,
		Precision:       w.Precision,
		Workers:         w.Workers,
		Strict:          w.Strict,
	}
}

// describeValidation flattens validator errors into one readable message.
func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
