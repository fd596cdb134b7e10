package logger

import (
	"strings"

	"go.uber.org/zap"
)

// New builds the application logger. mode "prod"/"production" selects the
// JSON production encoder; anything else gets the development console
// encoder.
func New(mode string) (*zap.SugaredLogger, error) {
	var cfg zap.Config
	switch strings.ToLower(mode) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}
	zl, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return zl.Sugar(), nil
}
