// Package outcome maps ratings to expected match outcomes and goals to actual scores.
package outcome

import "math"

// Default outcome configuration constants.
const (
	DefaultScale         = 500.0
	DefaultHomeAdvantage = 100.0
)

// Option applies a configuration option to the Model.
type Option func(*Model)

// WithScale sets the logistic scale. Non-positive values are ignored.
func WithScale(scale float64) Option {
	return func(m *Model) {
		if scale > 0 {
			m.scale = scale
		}
	}
}

// WithHomeAdvantage sets the additive home advantage used for expectation only.
func WithHomeAdvantage(ha float64) Option {
	return func(m *Model) {
		m.homeAdvantage = ha
	}
}

// Model holds the fixed calibration constants. It has no state beyond them.
type Model struct {
	scale         float64
	homeAdvantage float64
}

// New creates a Model with the reference constants unless overridden.
func New(opts ...Option) Model {
	m := Model{
		scale:         DefaultScale,
		homeAdvantage: DefaultHomeAdvantage,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Scale returns the logistic scale.
func (m Model) Scale() float64 { return m.scale }

// HomeAdvantage returns the configured home advantage.
func (m Model) HomeAdvantage() float64 { return m.homeAdvantage }

// Adjusted returns the home rating as seen by the expectation formula.
func (m Model) Adjusted(home float64) float64 {
	return home + m.homeAdvantage
}

// Expected returns the expected scores of home and away. They always sum to 1.
func (m Model) Expected(home, away float64) (eHome, eAway float64) {
	eHome = 1 / (1 + math.Pow(10, (away-m.Adjusted(home))/m.scale))
	return eHome, 1 - eHome
}

// Actual returns 1/0, 0/1 or 0.5/0.5 by comparing goals.
func Actual(homeGoals, awayGoals int) (sHome, sAway float64) {
	switch {
	case homeGoals > awayGoals:
		return 1, 0
	case homeGoals < awayGoals:
		return 0, 1
	default:
		return 0.5, 0.5
	}
}

// Delta returns the home rating change R' - R for K and the two scores.
// The away change is exactly -Delta, since S and E each sum to one.
func Delta(k, sHome, eHome float64) float64 {
	return k * (sHome - eHome)
}
