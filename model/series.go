package model

// Series is a numeric parameter that is either a single value broadcast
// across all periods or one value per period (interval fields) or per
// period edge (boundary fields). A nil Series means the parameter is
// absent; whether that is allowed depends on the field.
type Series []float64

// Scalar returns a Series holding one value, broadcast on use.
func Scalar(v float64) Series { return Series{v} }

// resolve expands the series to exactly want values. Length one broadcasts,
// length want copies, anything else is a ConstructionError naming the field
// with expected and actual lengths.
func (s Series) resolve(element, field string, want int) ([]float64, error) {
	switch len(s) {
	case 1:
		out := make([]float64, want)
		for i := range out {
			out[i] = s[0]
		}
		return out, nil
	case want:
		out := make([]float64, want)
		copy(out, s)
		return out, nil
	default:
		return nil, &ConstructionError{Element: element, Field: field, Expected: want, Actual: len(s)}
	}
}

// checkFraction verifies every value lies in [0, 1].
func checkFraction(element, field string, vals []float64) error {
	for _, v := range vals {
		if v < 0 || v > 1 {
			return &ConstructionError{
				Element: element, Field: field,
				Reason: "value out of range, must be within [0, 1]",
			}
		}
	}
	return nil
}

// checkEfficiency verifies every value lies in (0, 1].
func checkEfficiency(element, field string, vals []float64) error {
	for _, v := range vals {
		if v <= 0 || v > 1 {
			return &ConstructionError{
				Element: element, Field: field,
				Reason: "value out of range, must be within (0, 1]",
			}
		}
	}
	return nil
}

// checkNonNegative verifies every value is >= 0.
func checkNonNegative(element, field string, vals []float64) error {
	for _, v := range vals {
		if v < 0 {
			return &ConstructionError{
				Element: element, Field: field,
				Reason: "negative value not allowed",
			}
		}
	}
	return nil
}
