package l2fit

// Degree is the fixed polynomial degree for every lane fit. Left, right and
// center fits all share it so their coefficient sequences can be averaged
// and offset against each other.
const Degree = 2

// PolynomialFit holds the coefficients of a degree-2 polynomial modeling
// x as a function of y, ascending: x = c[0] + c[1]*y + c[2]*y².
type PolynomialFit [Degree + 1]float64

// Eval returns the modeled x at vertical position y.
func (f PolynomialFit) Eval(y float64) float64 {
	// Horner form
	return f[0] + y*(f[1]+y*f[2])
}

// ShiftConstant returns a copy of the fit with dx added to the constant
// term, translating the whole curve horizontally.
func (f PolynomialFit) ShiftConstant(dx float64) PolynomialFit {
	f[0] += dx
	return f
}

// Mean returns the elementwise average of two fits.
func Mean(a, b PolynomialFit) PolynomialFit {
	var out PolynomialFit
	for i := range out {
		out[i] = (a[i] + b[i]) / 2
	}
	return out
}

// Blend mixes two fits elementwise: prevWeight of prev plus
// (1−prevWeight) of next.
func Blend(prev, next PolynomialFit, prevWeight float64) PolynomialFit {
	var out PolynomialFit
	for i := range out {
		out[i] = prevWeight*prev[i] + (1-prevWeight)*next[i]
	}
	return out
}
