// Package labelformat defines the types for the label template file format
package labelformat

// Reference canvas the templates are authored against
const (
	DefaultDesignWidth  = 550.0
	DefaultDesignHeight = 600.0
	CurrentVersion      = "1.0"
)

// Object types
const (
	TypeTextbox = "textbox"
	TypeText    = "text"
	TypeImage   = "image"
	TypeBarcode = "barcode"
	TypeRect    = "rect"
)

// Template represents the root structure of a label template file
type Template struct {
	Version      string   `json:"version" yaml:"version"`
	Name         string   `json:"name,omitempty" yaml:"name,omitempty"`
	Description  string   `json:"description,omitempty" yaml:"description,omitempty"`
	DesignWidth  float64  `json:"designWidth" yaml:"designWidth"`
	DesignHeight float64  `json:"designHeight" yaml:"designHeight"`
	Background   string   `json:"background,omitempty" yaml:"background,omitempty"`
	Objects      []Object `json:"objects" yaml:"objects"`
}

// Object is one drawable element of a template
type Object struct {
	ID   string `json:"id,omitempty" yaml:"id,omitempty"`
	Type string `json:"type" yaml:"type"`

	// Geometry
	Left   float64 `json:"left" yaml:"left"`
	Top    float64 `json:"top" yaml:"top"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
	Angle  float64 `json:"angle,omitempty" yaml:"angle,omitempty"`
	ScaleX float64 `json:"scaleX" yaml:"scaleX"`
	ScaleY float64 `json:"scaleY" yaml:"scaleY"`

	// Text
	Text         string  `json:"text,omitempty" yaml:"text,omitempty"`
	FontFamily   string  `json:"fontFamily,omitempty" yaml:"fontFamily,omitempty"`
	FontSize     float64 `json:"fontSize,omitempty" yaml:"fontSize,omitempty"`
	FontWeight   string  `json:"fontWeight,omitempty" yaml:"fontWeight,omitempty"`
	TextAlign    string  `json:"textAlign,omitempty" yaml:"textAlign,omitempty"`
	TextBaseline string  `json:"textBaseline,omitempty" yaml:"textBaseline,omitempty"`
	LineHeight   float64 `json:"lineHeight,omitempty" yaml:"lineHeight,omitempty"`
	Padding      float64 `json:"padding,omitempty" yaml:"padding,omitempty"`

	// Paint
	Fill            string  `json:"fill,omitempty" yaml:"fill,omitempty"`
	BackgroundColor string  `json:"backgroundColor,omitempty" yaml:"backgroundColor,omitempty"`
	Stroke          string  `json:"stroke,omitempty" yaml:"stroke,omitempty"`
	StrokeWidth     float64 `json:"strokeWidth,omitempty" yaml:"strokeWidth,omitempty"`

	// Image: data URL or file path
	Src string `json:"src,omitempty" yaml:"src,omitempty"`

	// Barcode symbology: CODE128, CODE39, EAN13, EAN8
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// IsText reports whether the object carries substitutable text
func (o *Object) IsText() bool {
	return o.Type == TypeTextbox || o.Type == TypeText
}

// Clone returns a deep copy of the object
func (o *Object) Clone() Object {
	return *o
}

// Clone returns a deep copy of the template. Clones never share object storage.
func (t *Template) Clone() *Template {
	c := *t
	if t.Objects != nil {
		c.Objects = make([]Object, len(t.Objects))
		for i := range t.Objects {
			c.Objects[i] = t.Objects[i].Clone()
		}
	}
	return &c
}

// IndexOf returns the position of the object with the given id, or -1
func (t *Template) IndexOf(id string) int {
	for i := range t.Objects {
		if t.Objects[i].ID == id {
			return i
		}
	}
	return -1
}
