package simplertos

// kernelOptions holds configuration resolved from Option values at New.
type kernelOptions struct {
	sensibility Sensibility
	quantum     uint32
	maxTasks    int
	maxTimers   int
	logger      Logger
}

// Option configures a Kernel at construction time.
type Option interface {
	applyKernel(*kernelOptions) error
}

type kernelOptionFunc func(*kernelOptions) error

func (f kernelOptionFunc) applyKernel(opts *kernelOptions) error { return f(opts) }

// WithSensibility sets the tick rate. Must be one of the supported
// Sensibility constants.
func WithSensibility(s Sensibility) Option {
	return kernelOptionFunc(func(opts *kernelOptions) error {
		if !s.Valid() {
			return StatusError
		}
		opts.sensibility = s
		return nil
	})
}

// WithQuantum sets the number of ticks a task runs before round-robin
// rotation among equal-priority peers. Must be at least 1.
func WithQuantum(ticks uint32) Option {
	return kernelOptionFunc(func(opts *kernelOptions) error {
		if ticks == 0 {
			return StatusError
		}
		opts.quantum = ticks
		return nil
	})
}

// WithMaxTasks overrides the TCB arena capacity (default MaxTasks).
func WithMaxTasks(n int) Option {
	return kernelOptionFunc(func(opts *kernelOptions) error {
		if n <= 0 {
			return StatusError
		}
		opts.maxTasks = n
		return nil
	})
}

// WithMaxTimers overrides the timer table capacity (default
// TimerListLength).
func WithMaxTimers(n int) Option {
	return kernelOptionFunc(func(opts *kernelOptions) error {
		if n <= 0 {
			return StatusError
		}
		opts.maxTimers = n
		return nil
	})
}

// WithLogger installs a structured Logger. The default is a no-op logger.
func WithLogger(logger Logger) Option {
	return kernelOptionFunc(func(opts *kernelOptions) error {
		opts.logger = logger
		return nil
	})
}

// resolveOptions applies opts over the documented defaults.
func resolveOptions(opts []Option) (*kernelOptions, error) {
	cfg := &kernelOptions{
		sensibility: defaultSensibility,
		quantum:     DefaultQuantum,
		maxTasks:    MaxTasks,
		maxTimers:   TimerListLength,
		logger:      noOpLogger{},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyKernel(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
