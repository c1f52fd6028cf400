package logger

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

var (
	API     logrus.FieldLogger
	Request logrus.FieldLogger
	Client  logrus.FieldLogger
)

func init() {
	env := os.Getenv("ENVIRONMENT")
	API = Logger(logrus.New(), os.Getenv("FRONTDESK_API_LOG"), "api", env)
	Request = Logger(logrus.New(), os.Getenv("FRONTDESK_REQUEST_LOG"), "api", env)
	Client = Logger(logrus.New(), os.Getenv("FRONTDESK_CLIENT_LOG"), "frontdesk", env)
}

// Logger points logger at outputFile (stderr when empty or unwritable) and tags
// every entry with the application and environment.
func Logger(logger *logrus.Logger, outputFile string,
	application, environment string) logrus.FieldLogger {

	if outputFile != "" {
		if file, err := os.OpenFile(filepath.Clean(outputFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640); err == nil {
			logger.SetOutput(file)
		} else {
			logger.Infof("Failed to open output file %s. Will use stderr. %s",
				outputFile, err.Error())
		}
	}

	if environment == "production" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	if level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logger.SetLevel(level)
	}

	return logger.WithFields(logrus.Fields{
		"application": application,
		"environment": environment})
}
