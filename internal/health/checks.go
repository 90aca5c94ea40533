package health

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// FilesExist returns a checker that fails when any of paths is missing or is
// a directory. Empty paths are ignored.
func FilesExist(name string, paths ...string) Checker {
	return Checker{
		Name: name,
		Check: func(_ context.Context) error {
			var errs []error
			for _, p := range paths {
				if p == "" {
					continue
				}
				fi, err := os.Stat(p)
				switch {
				case err != nil:
					errs = append(errs, err)
				case fi.IsDir():
					errs = append(errs, fmt.Errorf("%s is a directory", p))
				}
			}
			return errors.Join(errs...)
		},
	}
}

// Flag returns a checker that passes while ready reports true.
func Flag(name, reason string, ready func() bool) Checker {
	return Checker{
		Name: name,
		Check: func(_ context.Context) error {
			if !ready() {
				return errors.New(reason)
			}
			return nil
		},
	}
}
