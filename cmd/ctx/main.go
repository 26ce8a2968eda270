package main

import (
	"os"

	ctxerrors "github.com/wenkaifan0720/ctx/internal/errors"
)

func main() {
	err := rootCmd.Execute()
	if err == nil {
		os.Exit(0)
	}

	var sqlErr *ctxerrors.SQLError
	if asSQLError(err, &sqlErr) {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}

	os.Stderr.WriteString(err.Error() + "\n")
	os.Exit(1)
}

// asSQLError reports whether err's cause chain contains a *SQLError,
// the distinguished exit-code-2 case spec §6 names ("SQL error").
func asSQLError(err error, target **ctxerrors.SQLError) bool {
	for err != nil {
		if se, ok := err.(*ctxerrors.SQLError); ok {
			*target = se
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
