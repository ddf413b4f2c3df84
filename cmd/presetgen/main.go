package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"gopkg.in/yaml.v2"

	"github.com/spf13/viper"
)

const outDir = "configs"

// generatePreset собирает values-файл варианта: база плюс его overrides.
func generatePreset(base *viper.Viper, name string, overrides map[string]interface{}) (string, error) {
	result := viper.New()
	for key, value := range base.AllSettings() {
		result.Set(key, value)
	}
	for key, value := range overrides {
		result.Set(key, value)
	}
	result.Set("strategy.name", name)

	bs, err := yaml.Marshal(result.AllSettings())
	if err != nil {
		return "", errors.Wrap(err, "marshal preset to yaml")
	}

	if err = os.MkdirAll(outDir, 0o755); err != nil {
		return "", errors.Wrap(err, "create configs dir")
	}

	file := filepath.Join(outDir, fmt.Sprintf("values_%s.yaml", name))
	temp, err := os.Create(file)
	if err != nil {
		return "", errors.Wrap(err, "create values file")
	}
	defer func() { _ = temp.Close() }()

	if _, err = temp.Write(bs); err != nil {
		_ = os.Remove(temp.Name())
		return "", errors.Wrap(err, "write content")
	}
	return temp.Name(), nil
}

func main() {
	viper.SetConfigName(".preset.base")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	presets := viper.GetStringMap("presets")
	if len(presets) == 0 {
		panic("has no presets in config")
	}

	base := viper.Sub("base")
	if base == nil {
		base = viper.New()
	}

	for name := range presets {
		overrides := viper.GetStringMap("presets." + name)
		file, err := generatePreset(base, name, overrides)
		if err != nil {
			panic(fmt.Errorf("can't generate preset %s: %w", name, err))
		}
		fmt.Printf("%s file complete\n", file)
	}
	fmt.Println("done")
}
