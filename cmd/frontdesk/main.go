package main

import (
	"fmt"
	"os"

	"github.com/lizet96/frontdesk/client"
	"github.com/pkg/errors"
)

func main() {
	app := GetApp()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, describe(err))
		os.Exit(1)
	}
}

// describe turns a failed command into the line shown to the user
func describe(err error) string {
	if errors.Is(err, client.ErrUnauthorized) {
		return "Your session has expired. Run `frontdesk login` to sign in again."
	}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return "Error: " + apiErr.Error()
	}
	return "Error: " + err.Error()
}
