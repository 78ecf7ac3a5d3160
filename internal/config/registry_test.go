package config_test

import (
	"errors"
	"testing"

	"github.com/visagelabs/visage/internal/config"
	"github.com/visagelabs/visage/pkg/recog"
	"github.com/visagelabs/visage/pkg/recog/mock"
)

func TestCreateEngine(t *testing.T) {
	reg := config.NewRegistry()
	reg.RegisterEngine(config.EngineScript, func(config.RecognitionConfig) (recog.Engine, error) {
		return &mock.Engine{}, nil
	})

	eng, err := reg.CreateEngine(config.RecognitionConfig{Engine: config.EngineScript})
	if err != nil {
		t.Fatalf("CreateEngine: %v", err)
	}
	if eng == nil {
		t.Fatal("CreateEngine returned nil engine")
	}
}

func TestCreateEngineDefaultsToScript(t *testing.T) {
	reg := config.NewRegistry()
	called := false
	reg.RegisterEngine(config.EngineScript, func(config.RecognitionConfig) (recog.Engine, error) {
		called = true
		return &mock.Engine{}, nil
	})

	if _, err := reg.CreateEngine(config.RecognitionConfig{}); err != nil {
		t.Fatalf("CreateEngine: %v", err)
	}
	if !called {
		t.Error("empty engine kind should fall back to the script factory")
	}
}

func TestCreateEngineUnregistered(t *testing.T) {
	reg := config.NewRegistry()
	_, err := reg.CreateEngine(config.RecognitionConfig{Engine: config.EngineSidecar})
	if !errors.Is(err, config.ErrEngineNotRegistered) {
		t.Errorf("err = %v, want ErrEngineNotRegistered", err)
	}
}

func TestRegisterEngineOverwrites(t *testing.T) {
	reg := config.NewRegistry()
	reg.RegisterEngine(config.EngineScript, func(config.RecognitionConfig) (recog.Engine, error) {
		t.Fatal("old factory called")
		return nil, nil
	})
	reg.RegisterEngine(config.EngineScript, func(config.RecognitionConfig) (recog.Engine, error) {
		return &mock.Engine{}, nil
	})

	if _, err := reg.CreateEngine(config.RecognitionConfig{Engine: config.EngineScript}); err != nil {
		t.Fatalf("CreateEngine: %v", err)
	}
}
