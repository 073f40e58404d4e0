// Package l2fit provides outlier-resistant polynomial fitting for lane
// boundary points.
//
// Lane boundary candidates extracted from edge images carry spurious points
// from shadows, adjacent lane markings and rendering artifacts. A one-stage
// least-squares fit would let a minority of bad points drag the curve; this
// package first runs consensus sampling over the quadratic model (which is
// linear in its coefficients) and only then solves the final least-squares
// fit against the consensus model's predictions.
package l2fit
