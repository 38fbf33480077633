package generator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	usersFile    = "users.json"
	messagesFile = "messages.json"
)

// WriteDataset serializes the dataset into users.json and messages.json under the provided directory.
func WriteDataset(dataset Dataset, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	if err := writeJSON(filepath.Join(dir, usersFile), dataset.Users); err != nil {
		return err
	}
	return writeJSON(filepath.Join(dir, messagesFile), dataset.Messages)
}

// LoadDataset reads a dataset written by WriteDataset.
func LoadDataset(dir string) (Dataset, error) {
	var ds Dataset
	if err := readJSON(filepath.Join(dir, usersFile), &ds.Users); err != nil {
		return Dataset{}, err
	}
	if err := readJSON(filepath.Join(dir, messagesFile), &ds.Messages); err != nil {
		return Dataset{}, err
	}
	return ds, nil
}

func writeJSON(path string, data any) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encode json for %s: %w", path, err)
	}
	return nil
}

func readJSON(path string, target any) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
