package predict

// Option applies a configuration option to the Annealer.
type Option func(*Annealer)

// WithInitialTemperature sets T0. Values at or below the floor are ignored.
func WithInitialTemperature(t float64) Option {
	return func(a *Annealer) {
		if t > 0 {
			a.initialTemp = t
		}
	}
}

// WithCoolingFactor sets the geometric decay factor, which must lie in (0,1).
func WithCoolingFactor(alpha float64) Option {
	return func(a *Annealer) {
		if alpha > 0 && alpha < 1 {
			a.cooling = alpha
		}
	}
}

// WithMinTemperature sets the temperature floor that ends the schedule.
func WithMinTemperature(t float64) Option {
	return func(a *Annealer) {
		if t > 0 {
			a.minTemp = t
		}
	}
}

// WithSamplesPerLevel sets how many candidate moves are drawn per temperature.
func WithSamplesPerLevel(n int) Option {
	return func(a *Annealer) {
		if n > 0 {
			a.samples = n
		}
	}
}
