package eventlog

import (
	"fmt"
	"os"
)

// RootEnvVar overrides the application root when set.
const RootEnvVar = "APP_ROOT_PATH"

// RootResolver supplies the directory that relative log paths are joined to.
type RootResolver interface {
	Root() (string, error)
}

type RootFunc func() (string, error)

func (f RootFunc) Root() (string, error) {
	return f()
}

// StaticRoot always resolves to dir.
func StaticRoot(dir string) RootResolver {
	return RootFunc(func() (string, error) {
		return dir, nil
	})
}

// AppRoot resolves to $APP_ROOT_PATH, falling back to the working directory.
func AppRoot() RootResolver {
	return RootFunc(func() (string, error) {
		if dir := os.Getenv(RootEnvVar); dir != "" {
			return dir, nil
		}
		dir, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolving application root: %w", err)
		}
		return dir, nil
	})
}
