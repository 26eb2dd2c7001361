package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

// SetConfigData merges data into the site state file (config.<ext>),
// creating it when missing.
func SetConfigData(fp, confExt string, data map[string]interface{}) error {
	fileSource := filepath.Join(fp, fmt.Sprintf("config.%s", confExt))
	if !IsExistOnDisk(fileSource) {
		return Marshal(fileSource, data)
	}
	current, err := Unmarshal(fileSource)
	if err != nil {
		return err
	}
	return Marshal(fileSource, UpdateOrInsertMap(current, data))
}

// Marshal writes data as JSON or YAML depending on the file extension.
func Marshal(filename string, data interface{}) error {
	fd, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer fd.Close()

	switch ext := filepath.Ext(filename); ext {
	case ".json":
		encoder := json.NewEncoder(fd)
		encoder.SetIndent("", "    ")
		return encoder.Encode(data)
	case ".yml", ".yaml":
		encoder := yaml.NewEncoder(fd)
		defer encoder.Close()
		return encoder.Encode(data)
	default:
		return fmt.Errorf("invalid format: %s", ext)
	}
}

// Unmarshal reads a JSON or YAML file into a generic map.
func Unmarshal(filename string) (data map[string]interface{}, err error) {
	fd, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer fd.Close()

	switch ext := filepath.Ext(filename); ext {
	case ".json":
		err = json.NewDecoder(fd).Decode(&data)
	case ".yml", ".yaml":
		err = yaml.NewDecoder(fd).Decode(&data)
	default:
		return nil, fmt.Errorf("invalid format: %s", ext)
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// UpdateOrInsertMap merges obj2 into obj1, recursing into nested maps.
func UpdateOrInsertMap(obj1, obj2 map[string]interface{}) map[string]interface{} {
	if obj1 == nil {
		obj1 = make(map[string]interface{})
	}
	for key, value := range obj2 {
		if nested, ok := value.(map[string]interface{}); ok {
			if existing, ok := obj1[key].(map[string]interface{}); ok {
				obj1[key] = UpdateOrInsertMap(existing, nested)
				continue
			}
		}
		obj1[key] = value
	}
	return obj1
}
