package inference

// Sampling holds the generation knobs forwarded to the engine verbatim.
type Sampling struct {
	// MaxTokens caps the response length; 0 or less leaves it to the engine.
	MaxTokens     int
	Temperature   float64
	TopK          int
	TopP          float64
	MinP          float64
	TypicalP      float64
	RepeatPenalty float64
	MirostatMode  int
	MirostatTau   float64
	MirostatEta   float64
	TFSZ          float64
	// Seed of -1 lets the engine pick one.
	Seed int64
}

// DefaultSampling returns the defaults used when a caller sets nothing.
func DefaultSampling() Sampling {
	return Sampling{
		MaxTokens:     0,
		Temperature:   0.4,
		TopK:          0,
		TopP:          1.0,
		MinP:          0.05,
		TypicalP:      1.0,
		RepeatPenalty: 1.0,
		MirostatMode:  0,
		MirostatTau:   5.0,
		MirostatEta:   0.1,
		TFSZ:          1.0,
		Seed:          -1,
	}
}

// SamplingOptions is a partial Sampling. Nil fields keep the base value, so
// config files and API requests can override only what they mention.
type SamplingOptions struct {
	MaxTokens     *int     `json:"max_tokens,omitempty" yaml:"max_tokens"`
	Temperature   *float64 `json:"temperature,omitempty" yaml:"temperature"`
	TopK          *int     `json:"top_k,omitempty" yaml:"top_k"`
	TopP          *float64 `json:"top_p,omitempty" yaml:"top_p"`
	MinP          *float64 `json:"min_p,omitempty" yaml:"min_p"`
	TypicalP      *float64 `json:"typical_p,omitempty" yaml:"typical_p"`
	RepeatPenalty *float64 `json:"repeat_penalty,omitempty" yaml:"repeat_penalty"`
	MirostatMode  *int     `json:"mirostat_mode,omitempty" yaml:"mirostat_mode"`
	MirostatTau   *float64 `json:"mirostat_tau,omitempty" yaml:"mirostat_tau"`
	MirostatEta   *float64 `json:"mirostat_eta,omitempty" yaml:"mirostat_eta"`
	TFSZ          *float64 `json:"tfs_z,omitempty" yaml:"tfs_z"`
	Seed          *int64   `json:"seed,omitempty" yaml:"seed"`
}

// Resolve layers the set fields of o over base.
func (o SamplingOptions) Resolve(base Sampling) Sampling {
	s := base
	if o.MaxTokens != nil {
		s.MaxTokens = *o.MaxTokens
	}
	if o.Temperature != nil {
		s.Temperature = *o.Temperature
	}
	if o.TopK != nil {
		s.TopK = *o.TopK
	}
	if o.TopP != nil {
		s.TopP = *o.TopP
	}
	if o.MinP != nil {
		s.MinP = *o.MinP
	}
	if o.TypicalP != nil {
		s.TypicalP = *o.TypicalP
	}
	if o.RepeatPenalty != nil {
		s.RepeatPenalty = *o.RepeatPenalty
	}
	if o.MirostatMode != nil {
		s.MirostatMode = *o.MirostatMode
	}
	if o.MirostatTau != nil {
		s.MirostatTau = *o.MirostatTau
	}
	if o.MirostatEta != nil {
		s.MirostatEta = *o.MirostatEta
	}
	if o.TFSZ != nil {
		s.TFSZ = *o.TFSZ
	}
	if o.Seed != nil {
		s.Seed = *o.Seed
	}
	return s
}
