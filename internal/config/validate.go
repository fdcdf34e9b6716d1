package config

import "github.com/go-playground/validator/v10"

// structValidator is shared by every Validate call; go-playground's
// own docs recommend a single long-lived instance since it caches
// struct metadata internally.
var structValidator = validator.New()
