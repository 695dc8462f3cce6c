package utils

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// LoadConfig reads a .env file from the given path if one exists.
// Missing files are fine; real environment variables always win.
func LoadConfig(path string) {
	if err := godotenv.Load(path + "/.env"); err != nil {
		if !os.IsNotExist(err) {
			logrus.Warnf("[CONFIG] could not load .env: %v", err)
		}
		return
	}
	logrus.Debug("[CONFIG] loaded environment from .env")
}

// CreateFolder creates every given directory, parents included.
func CreateFolder(folders ...string) error {
	for _, folder := range folders {
		if err := os.MkdirAll(folder, 0755); err != nil {
			return fmt.Errorf("failed to create folder %s: %w", folder, err)
		}
	}
	return nil
}
