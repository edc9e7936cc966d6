package labelformat

import (
	"fmt"
)

// Validate validates a Template structure
func Validate(t *Template) error {
	if t.Version == "" {
		return fmt.Errorf("version is required")
	}
	if t.Version != CurrentVersion {
		return fmt.Errorf("unsupported version: %s (expected %s)", t.Version, CurrentVersion)
	}

	if t.DesignWidth <= 0 || t.DesignHeight <= 0 {
		return fmt.Errorf("invalid design size %gx%g", t.DesignWidth, t.DesignHeight)
	}

	ids := make(map[string]bool)
	for i := range t.Objects {
		obj := &t.Objects[i]
		if obj.ID != "" {
			if ids[obj.ID] {
				return fmt.Errorf("object[%d]: duplicate id '%s'", i, obj.ID)
			}
			ids[obj.ID] = true
		}

		if err := ValidateObject(obj); err != nil {
			return fmt.Errorf("object[%d]: %w", i, err)
		}
	}

	return nil
}

// ValidateObject validates a single template object
func ValidateObject(obj *Object) error {
	if obj.Type == "" {
		return fmt.Errorf("object type is required")
	}

	if obj.Width < 0 || obj.Height < 0 {
		return fmt.Errorf("negative size %gx%g", obj.Width, obj.Height)
	}

	switch obj.Type {
	case TypeTextbox, TypeText:
		return validateAlign(obj.TextAlign)
	case TypeImage:
		if obj.Src == "" {
			return fmt.Errorf("image object requires src")
		}
	case TypeBarcode:
		return validateBarcodeFormat(obj.Format)
	case TypeRect:
	default:
		return fmt.Errorf("unknown object type: %s", obj.Type)
	}

	return nil
}

func validateAlign(align string) error {
	switch align {
	case "", "left", "center", "right", "justify":
		return nil
	}
	return fmt.Errorf("invalid textAlign '%s' (must be left, center, right, or justify)", align)
}

func validateBarcodeFormat(format string) error {
	switch format {
	case "", "CODE128", "CODE39", "EAN13", "EAN8":
		return nil
	}
	return fmt.Errorf("invalid barcode format '%s' (must be CODE128, CODE39, EAN13, or EAN8)", format)
}
