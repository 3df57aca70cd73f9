// internal/rating/glicko2.go
package rating

import (
	"math"
)

const (
	// GlickoScale is the multiplier used for converting between Elo and Glicko2's mu.
	GlickoScale = 173.7178
	// DefaultElo is the baseline rating on the familiar 1500 scale.
	DefaultElo = 1500.0
	// DefaultRD is the baseline rating deviation on the same scale.
	DefaultRD = 350.0
	// DefaultSigma is the starting volatility.
	DefaultSigma = 0.06
	// Tau is the constraint on volatility changes.
	Tau = 0.5
	// Epsilon is the tolerance used in iteration stopping conditions.
	Epsilon = 0.000001
)

// Match outcomes from the rated participant's point of view.
const (
	Loss = 0.0
	Draw = 0.5
	Win  = 1.0
)

// Rating holds mu, phi and sigma in Glicko2 space.
type Rating struct {
	Mu    float64
	Phi   float64
	Sigma float64
}

// New converts an Elo-scale rating and deviation into Glicko2 space.
func New(elo, rd, sigma float64) Rating {
	return Rating{
		Mu:    (elo - DefaultElo) / GlickoScale,
		Phi:   rd / GlickoScale,
		Sigma: sigma,
	}
}

// Default is an unrated participant.
func Default() Rating {
	return New(DefaultElo, DefaultRD, DefaultSigma)
}

// Elo converts Mu back to the 1500 scale.
func (r Rating) Elo() float64 {
	return r.Mu*GlickoScale + DefaultElo
}

// RD converts Phi back to the 1500 scale.
func (r Rating) RD() float64 {
	return r.Phi * GlickoScale
}

// Update applies one game against opp with the given score in [0..1].
func (r Rating) Update(opp Rating, score float64) Rating {
	gVal := g(opp.Phi)
	eVal := expected(r.Mu, opp.Mu, opp.Phi)

	v := 1.0 / (gVal * gVal * eVal * (1 - eVal))
	delta := v * gVal * (score - eVal)

	a := math.Log(r.Sigma * r.Sigma)
	fx := func(x float64) float64 {
		return f(x, r.Phi, v, delta, a)
	}

	// Illinois method for the new volatility
	A := a
	var B float64
	if delta*delta > r.Phi*r.Phi+v {
		B = math.Log(delta*delta - r.Phi*r.Phi - v)
	} else {
		k := 1.0
		for fx(a-k*Tau) < 0 && k < 100 {
			k++
		}
		B = a - k*Tau
	}
	fA, fB := fx(A), fx(B)
	for i := 0; i < 100 && math.Abs(B-A) > Epsilon; i++ {
		C := A + (A-B)*fA/(fB-fA)
		fC := fx(C)
		if fC*fB <= 0 {
			A, fA = B, fB
		} else {
			fA /= 2
		}
		B, fB = C, fC
	}

	newSigma := math.Exp(A / 2)
	phiStar := math.Sqrt(r.Phi*r.Phi + newSigma*newSigma)
	phiPrime := 1.0 / math.Sqrt(1.0/(phiStar*phiStar)+1.0/v)
	muPrime := r.Mu + phiPrime*phiPrime*gVal*(score-eVal)

	return Rating{Mu: muPrime, Phi: phiPrime, Sigma: newSigma}
}

// g is the G(phi) factor from Glicko2, 1/sqrt(1+3phi^2/pi^2).
func g(phi float64) float64 {
	return 1.0 / math.Sqrt(1.0+3.0*phi*phi/math.Pi/math.Pi)
}

// expected is E(mu,mu2,phi2)=1/(1+exp[-g(phi2)*(mu-mu2)]).
func expected(mu, mu2, phi2 float64) float64 {
	return 1.0 / (1.0 + math.Exp(-g(phi2)*(mu-mu2)))
}

// f is the volatility root-finding function.
func f(x, phi, v, delta, a float64) float64 {
	ex := math.Exp(x)
	num := ex * (delta*delta - phi*phi - v - ex)
	den := 2.0 * (phi*phi + v + ex) * (phi*phi + v + ex)
	return (num / den) - ((x - a) / (Tau * Tau))
}
