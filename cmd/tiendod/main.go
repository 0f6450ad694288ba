package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tiendoapp/tiendo/internal/daemon"
	"github.com/tiendoapp/tiendo/internal/profile"
	"go.uber.org/fx"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	userFlag := flag.String("user", "", "signed-in user id")
	flag.Parse()

	profileName := profile.Resolve(*profileFlag)
	if err := profile.ValidateName(profileName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		daemon.Module(daemon.Params{
			ProfileName: profileName,
			UserID:      *userFlag,
		}),
	)

	app.Run()
}
