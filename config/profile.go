package config

// Profile describes layered config sources.
type Profile struct {
	BasePath    string
	EnvPath     string
	SecretsPath string
	DotenvPath  string
	EnvPrefix   string
	// AllowMissing skips file layers that do not exist.
	AllowMissing bool
}

// Loader composes layered config with defaults and validation.
type Loader[T any] struct {
	Defaults func() T
	ApplyEnv func(prefix string, base T) (T, error)
	// Override runs after the environment layer, e.g. for command-line flags.
	Override func(cfg T) T
	Resolve  func(cfg T) (T, error)
	Validate func(cfg T) error
}

// Load merges profile layers into a typed config.
func (l Loader[T]) Load(profile Profile) (T, error) {
	var cfg T
	if l.Defaults != nil {
		cfg = l.Defaults()
	}

	var err error
	for _, path := range []string{profile.BasePath, profile.EnvPath, profile.SecretsPath} {
		if path == "" {
			continue
		}
		cfg, err = loadFile(path, cfg, profile.AllowMissing)
		if err != nil {
			return cfg, err
		}
	}
	if err := LoadDotenv(profile.DotenvPath, profile.AllowMissing); err != nil {
		return cfg, err
	}
	if profile.EnvPrefix != "" && l.ApplyEnv != nil {
		cfg, err = l.ApplyEnv(profile.EnvPrefix, cfg)
		if err != nil {
			return cfg, err
		}
	}
	if l.Override != nil {
		cfg = l.Override(cfg)
	}
	if l.Resolve != nil {
		cfg, err = l.Resolve(cfg)
		if err != nil {
			return cfg, err
		}
	}
	if l.Validate != nil {
		if err := l.Validate(cfg); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

// NewLoader returns the Config loader: defaults, files, dotenv, env,
// override, tier resolution and validation.
func NewLoader() Loader[Config] {
	return Loader[Config]{
		Defaults: Default,
		ApplyEnv: LoadFromEnv,
		Resolve:  Resolve,
		Validate: Validate,
	}
}

// LoadProfile loads Config from a layered profile with validation.
func LoadProfile(profile Profile) (Config, error) {
	return NewLoader().Load(profile)
}
